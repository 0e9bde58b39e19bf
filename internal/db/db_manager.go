package db

import (
	"context"
	"sync"
	"time"

	"gomqtt-telemetry/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBManager owns the pgx pool for the telemetry store and keeps it healthy
// with a periodic ping. All store and registry access goes through Pool().
type DBManager struct {
	pool         *pgxpool.Pool
	mu           sync.RWMutex
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *zap.SugaredLogger
	shutdownOnce sync.Once
}

func NewDBManager(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*DBManager, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DB.URL)
	if err != nil {
		return nil, err
	}

	// Disable prepared statements to avoid the "prepared statement already exists" error
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	tlsConfig, err := cfg.CreatePostgresTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		poolConfig.ConnConfig.TLSConfig = tlsConfig
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	manager := &DBManager{
		pool:         pool,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	manager.StartAutoReconnect(ctx)
	return manager, nil
}

func (d *DBManager) Pool() *pgxpool.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool
}

// StartAutoReconnect periodically pings the store so connection trouble
// surfaces in the logs before a write fails.
func (d *DBManager) StartAutoReconnect(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.shutdownChan:
				d.logger.Info("auto-reconnect stopped: shutdown signal received")
				return
			case <-ticker.C:
				if err := d.pool.Ping(ctx); err != nil {
					d.logger.Errorw("store ping failed", "error", err)
				} else {
					d.logger.Debug("store ping successful")
				}
			}
		}
	}()
}

// Shutdown gracefully stops the DBManager.
func (d *DBManager) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.logger.Info("initiating store shutdown")

		close(d.shutdownChan)
		d.wg.Wait()

		d.mu.Lock()
		if d.pool != nil {
			d.pool.Close()
			d.logger.Info("store connection pool closed")
		}
		d.mu.Unlock()
	})
}

// IsShuttingDown returns true if shutdown has been initiated.
func (d *DBManager) IsShuttingDown() bool {
	select {
	case <-d.shutdownChan:
		return true
	default:
		return false
	}
}

func (d *DBManager) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}
