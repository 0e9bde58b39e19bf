package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStringFloat64(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{`1.5`, 1.5, false},
		{`"1.5"`, 1.5, false},
		{`" 42 "`, 42, false},
		{`"-0.25"`, -0.25, false},
		{`"abc"`, 0, true},
		{`true`, 0, true},
	}
	for _, tc := range cases {
		var v StringFloat64
		err := json.Unmarshal([]byte(tc.in), &v)
		if tc.wantErr {
			if err == nil {
				t.Errorf("unmarshal %s: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("unmarshal %s: %v", tc.in, err)
			continue
		}
		if float64(v) != tc.want {
			t.Errorf("unmarshal %s: got %v, want %v", tc.in, v, tc.want)
		}
	}
}

func TestFlexTimeShapes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2026-03-04T10:00:00Z"`, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", `"2026-03-04T11:00:00+01:00"`, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"epoch seconds", `1700000000`, time.Unix(1700000000, 0)},
		{"epoch millis", `1700000000123`, time.UnixMilli(1700000000123)},
		{"quoted epoch", `"1700000000"`, time.Unix(1700000000, 0)},
		{"garbage", `"last tuesday"`, time.Time{}},
		{"empty", `""`, time.Time{}},
		{"negative", `-5`, time.Time{}},
		{"bool", `true`, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v FlexTime
			if err := json.Unmarshal([]byte(tc.in), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got := time.Time(v)
			if tc.want.IsZero() {
				if !got.IsZero() {
					t.Errorf("got %v, want zero time", got)
				}
				return
			}
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFlexTimeMarshal(t *testing.T) {
	t.Parallel()
	v := FlexTime(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2026-03-04T10:00:00Z"` {
		t.Errorf("marshal: got %s", b)
	}
}
