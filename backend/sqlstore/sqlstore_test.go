package sqlstore

import (
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	numbered := &Store{dialect: Dialect{Numbered: true}}
	plain := &Store{dialect: Dialect{}}

	q := "SELECT * FROM tasks WHERE a = ? AND b = ?"
	if got := numbered.rebind(q); got != "SELECT * FROM tasks WHERE a = $1 AND b = $2" {
		t.Errorf("numbered rebind = %q", got)
	}
	if got := plain.rebind(q); got != q {
		t.Errorf("plain rebind changed query: %q", got)
	}
}

func TestTextTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 3, 9, 14, 30, 0, 120, time.FixedZone("X", 3600))
	enc := EncodeTextTime(in).(string)

	out, err := decodeTime(enc)
	if err != nil {
		t.Fatalf("decodeTime: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip: got %v, want %v", out, in)
	}
}

func TestTextTimeSortsLexically(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := EncodeTextTime(base.Add(900 * time.Millisecond)).(string)
	later := EncodeTextTime(base.Add(time.Second)).(string)
	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}
}

func TestDecodeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		in      any
		wantErr bool
		zero    bool
	}{
		{"nil", nil, false, true},
		{"time", now, false, false},
		{"rfc3339", now.Format(time.RFC3339Nano), false, false},
		{"bytes", []byte(now.UTC().Format(TextTimeLayout)), false, false},
		{"garbage", "yesterday-ish", true, false},
		{"int", 42, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.IsZero() != tt.zero {
				t.Errorf("IsZero() = %v, want %v", got.IsZero(), tt.zero)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike = %q", got)
	}
}
