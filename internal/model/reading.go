package model

import (
	"math"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonFast = jsoniter.ConfigFastest

// Channel names as they appear on the wire and in query parameters. The
// spelling (including "singalPCurrent") is the device firmware contract and
// must not be normalized.
const (
	ChannelVoltage       = "voltage"
	ChannelTemperature   = "temperature"
	ChannelVibration     = "vibration"
	ChannelSinglePhase   = "singalPCurrent"
	ChannelAPhaseCurrent = "AphaseCurrent"
	ChannelBPhaseCurrent = "BphaseCurrent"
	ChannelCPhaseCurrent = "CphaseCurrent"
)

// RequiredChannels is the fixed numeric channel set every Reading must carry.
var RequiredChannels = []string{
	ChannelVoltage,
	ChannelTemperature,
	ChannelVibration,
	ChannelSinglePhase,
	ChannelAPhaseCurrent,
	ChannelBPhaseCurrent,
	ChannelCPhaseCurrent,
}

// requiredGpioFields are the digital state fields a device always reports.
var requiredGpioFields = []string{"AgpioState", "BgpioState", "CgpioState", "generalGpio"}

// Reading is one validated sensor sample from one device. Immutable once
// constructed; DeviceID always comes from the topic, never the payload.
type Reading struct {
	DeviceID       string    `json:"deviceId"`
	Timestamp      time.Time `json:"timestamp"`
	Voltage        float64   `json:"voltage"`
	Temperature    float64   `json:"temperature"`
	Vibration      float64   `json:"vibration"`
	SingalPCurrent float64   `json:"singalPCurrent"`
	APhaseCurrent  float64   `json:"AphaseCurrent"`
	BPhaseCurrent  float64   `json:"BphaseCurrent"`
	CPhaseCurrent  float64   `json:"CphaseCurrent"`
	AGpioState     int       `json:"AgpioState"`
	BGpioState     int       `json:"BgpioState"`
	CGpioState     int       `json:"CgpioState"`
	GeneralGpio    int       `json:"generalGpio"`
	RS485DataCount int       `json:"rs485DataCount,omitempty"`
	RS485Data      []float64 `json:"rs485Data,omitempty"`
}

// Channel returns the named channel value, or false for an unknown name.
func (r *Reading) Channel(name string) (float64, bool) {
	switch name {
	case ChannelVoltage:
		return r.Voltage, true
	case ChannelTemperature:
		return r.Temperature, true
	case ChannelVibration:
		return r.Vibration, true
	case ChannelSinglePhase:
		return r.SingalPCurrent, true
	case ChannelAPhaseCurrent:
		return r.APhaseCurrent, true
	case ChannelBPhaseCurrent:
		return r.BPhaseCurrent, true
	case ChannelCPhaseCurrent:
		return r.CPhaseCurrent, true
	}
	return 0, false
}

// HasUsableChannels reports whether every required channel is finite. A device
// whose latest reading fails this is considered offline even when connected.
func (r *Reading) HasUsableChannels() bool {
	for _, name := range RequiredChannels {
		v, _ := r.Channel(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidationError names every missing or non-finite field in one inbound
// payload so the drop can be logged with full context.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	msg := "invalid telemetry payload, bad fields:"
	for _, f := range e.Fields {
		msg += " " + f
	}
	return msg
}

// inboundReading is the raw wire shape. Pointer fields distinguish an absent
// channel from a zero value; StringFloat64 tolerates firmware that quotes its
// numbers.
type inboundReading struct {
	Timestamp      *FlexTime      `json:"timestamp"`
	Voltage        *StringFloat64 `json:"voltage"`
	Temperature    *StringFloat64 `json:"temperature"`
	Vibration      *StringFloat64 `json:"vibration"`
	SingalPCurrent *StringFloat64 `json:"singalPCurrent"`
	APhaseCurrent  *StringFloat64 `json:"AphaseCurrent"`
	BPhaseCurrent  *StringFloat64 `json:"BphaseCurrent"`
	CPhaseCurrent  *StringFloat64 `json:"CphaseCurrent"`
	AGpioState     *int           `json:"AgpioState"`
	BGpioState     *int           `json:"BgpioState"`
	CGpioState     *int           `json:"CgpioState"`
	GeneralGpio    *int           `json:"generalGpio"`
	RS485DataCount int            `json:"rs485DataCount"`
	RS485Data      []float64      `json:"rs485Data"`
}

// ParseReading parses and validates one inbound payload into a Reading.
// Returns a *ValidationError listing every offending field when any required
// channel or GPIO field is missing or non-finite; a reading is never partially
// accepted. A missing or unparsable timestamp falls back to receivedAt.
func ParseReading(deviceID string, payload []byte, receivedAt time.Time) (Reading, error) {
	var in inboundReading
	if err := jsonFast.Unmarshal(payload, &in); err != nil {
		return Reading{}, err
	}

	var bad []string
	channel := func(name string, v *StringFloat64) float64 {
		if v == nil {
			bad = append(bad, name)
			return 0
		}
		f := float64(*v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			bad = append(bad, name)
		}
		return f
	}
	gpio := func(name string, v *int) int {
		if v == nil {
			bad = append(bad, name)
			return 0
		}
		return *v
	}

	r := Reading{
		DeviceID:       deviceID,
		Voltage:        channel(ChannelVoltage, in.Voltage),
		Temperature:    channel(ChannelTemperature, in.Temperature),
		Vibration:      channel(ChannelVibration, in.Vibration),
		SingalPCurrent: channel(ChannelSinglePhase, in.SingalPCurrent),
		APhaseCurrent:  channel(ChannelAPhaseCurrent, in.APhaseCurrent),
		BPhaseCurrent:  channel(ChannelBPhaseCurrent, in.BPhaseCurrent),
		CPhaseCurrent:  channel(ChannelCPhaseCurrent, in.CPhaseCurrent),
		AGpioState:     gpio("AgpioState", in.AGpioState),
		BGpioState:     gpio("BgpioState", in.BGpioState),
		CGpioState:     gpio("CgpioState", in.CGpioState),
		GeneralGpio:    gpio("generalGpio", in.GeneralGpio),
		RS485DataCount: in.RS485DataCount,
		RS485Data:      sanitizeAux(in.RS485Data),
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return Reading{}, &ValidationError{Fields: bad}
	}

	if in.Timestamp != nil && !time.Time(*in.Timestamp).IsZero() {
		r.Timestamp = time.Time(*in.Timestamp).UTC()
	} else {
		r.Timestamp = receivedAt.UTC()
	}
	return r, nil
}

// sanitizeAux replaces non-finite auxiliary values with zero so the reading
// stays serializable end to end. Aux data is opaque and not validated.
func sanitizeAux(vals []float64) []float64 {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[i] = 0
		}
	}
	return vals
}
