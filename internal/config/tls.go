package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
)

// CreatePostgresTLSConfig builds the TLS config for the store connection.
// Returns nil when no CA certificate is configured (plain connection).
func (c *Config) CreatePostgresTLSConfig() (*tls.Config, error) {
	if c.DB.CACert == "" {
		return nil, nil
	}
	rootCertPool := x509.NewCertPool()
	if ok := rootCertPool.AppendCertsFromPEM([]byte(c.DB.CACert)); !ok {
		return nil, fmt.Errorf("failed to parse Postgres CA certificate")
	}
	return &tls.Config{
		RootCAs:    rootCertPool,
		ServerName: c.DB.Host,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// CreateMQTTTLSConfig builds the TLS config for ssl:// broker URLs.
// Returns nil when no CA certificate is configured.
func (c *Config) CreateMQTTTLSConfig() (*tls.Config, error) {
	if c.MQTT.CACert == "" {
		return nil, nil
	}
	rootCertPool := x509.NewCertPool()
	if ok := rootCertPool.AppendCertsFromPEM([]byte(c.MQTT.CACert)); !ok {
		return nil, fmt.Errorf("failed to parse MQTT CA certificate")
	}

	var serverName string
	if u, err := url.Parse(c.MQTT.BrokerURL); err == nil {
		serverName = u.Hostname()
	}
	return &tls.Config{
		RootCAs:    rootCertPool,
		ServerName: serverName, // must match SAN in certificate
		MinVersion: tls.VersionTLS12,
	}, nil
}
