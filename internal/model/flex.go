package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type StringFloat64 float64

// UnmarshalJSON allows StringFloat64 to accept both string and float in JSON.
func (s *StringFloat64) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = StringFloat64(f)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("StringFloat64: cannot unmarshal %s", string(b))
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("StringFloat64: cannot parse %q to float64", str)
	}
	*s = StringFloat64(f)
	return nil
}

// FlexTime accepts the timestamp shapes devices actually send: RFC3339
// strings, epoch seconds, or epoch milliseconds (number or quoted number).
// An unparsable value decodes to the zero time instead of failing the whole
// payload; the caller substitutes receipt time.
type FlexTime time.Time

func (t *FlexTime) UnmarshalJSON(b []byte) error {
	var num float64
	if err := json.Unmarshal(b, &num); err == nil {
		*t = FlexTime(epochToTime(num))
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		*t = FlexTime(time.Time{})
		return nil
	}
	str = strings.TrimSpace(str)
	if str == "" {
		*t = FlexTime(time.Time{})
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, str); err == nil {
		*t = FlexTime(parsed)
		return nil
	}
	if num, err := strconv.ParseFloat(str, 64); err == nil {
		*t = FlexTime(epochToTime(num))
		return nil
	}
	*t = FlexTime(time.Time{})
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

// epochToTime treats values past year ~33658 in seconds as milliseconds.
func epochToTime(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	if v > 1e12 {
		return time.UnixMilli(int64(v))
	}
	return time.Unix(int64(v), int64((v-float64(int64(v)))*1e9))
}
