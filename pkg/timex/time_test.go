package timex

import (
	"testing"
	"time"
)

func TestTimeUnixMethods(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tt := Time(now)

	if tt.Unix() != now.Unix() {
		t.Errorf("Unix() = %v, want %v", tt.Unix(), now.Unix())
	}
	if tt.UnixMilli() != now.UnixMilli() {
		t.Errorf("UnixMilli() = %v, want %v", tt.UnixMilli(), now.UnixMilli())
	}
	if tt.UnixNano() != now.UnixNano() {
		t.Errorf("UnixNano() = %v, want %v", tt.UnixNano(), now.UnixNano())
	}
}

func TestTimeJSONRoundTrip(t *testing.T) {
	tt := Time(time.Date(2024, 6, 15, 8, 30, 0, 0, time.Local))

	data, err := tt.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"2024-06-15 08:30:00"` {
		t.Errorf("MarshalJSON = %s", data)
	}

	var back Time
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if back.Unix() != tt.Unix() {
		t.Errorf("round trip Unix() = %v, want %v", back.Unix(), tt.Unix())
	}
}

func TestTimeJSONZero(t *testing.T) {
	var zero Time
	data, err := zero.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `""` {
		t.Errorf("zero MarshalJSON = %s, want empty string", data)
	}
}

func TestTimeScanValue(t *testing.T) {
	tt := Time(time.Date(2024, 6, 15, 8, 30, 0, 0, time.Local))

	v, err := tt.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back Time
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if back.Unix() != tt.Unix() {
		t.Errorf("Scan round trip Unix() = %v, want %v", back.Unix(), tt.Unix())
	}

	var fromString Time
	if err := fromString.Scan("2024-06-15 08:30:00"); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if fromString.Unix() != tt.Unix() {
		t.Errorf("Scan(string) Unix() = %v, want %v", fromString.Unix(), tt.Unix())
	}
}
