package redisadapter

import (
	"errors"
	"testing"
)

func TestParseRelocation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantOk   bool
		wantKind string
		wantHost string
		wantPort int
		wantSlot int
	}{
		{
			name:     "moved",
			err:      errors.New("MOVED 3999 127.0.0.1:6381"),
			wantOk:   true,
			wantKind: RelocationMoved,
			wantHost: "127.0.0.1",
			wantPort: 6381,
			wantSlot: 3999,
		},
		{
			name:     "ask",
			err:      errors.New("ASK 3999 redis-2.internal:6380"),
			wantOk:   true,
			wantKind: RelocationAsk,
			wantHost: "redis-2.internal",
			wantPort: 6380,
			wantSlot: 3999,
		},
		{
			name:     "ipv6_target",
			err:      errors.New("MOVED 12 [::1]:6379"),
			wantOk:   true,
			wantKind: RelocationMoved,
			wantHost: "::1",
			wantPort: 6379,
			wantSlot: 12,
		},
		{name: "nil", err: nil, wantOk: false},
		{name: "plain_error", err: errors.New("connection refused"), wantOk: false},
		{name: "moved_prefix_in_message", err: errors.New("value was MOVED elsewhere"), wantOk: false},
		{name: "missing_target", err: errors.New("MOVED 3999"), wantOk: false},
		{name: "bad_slot", err: errors.New("MOVED x 127.0.0.1:6381"), wantOk: false},
		{name: "bad_port", err: errors.New("MOVED 3999 127.0.0.1:notaport"), wantOk: false},
		{name: "no_port", err: errors.New("MOVED 3999 127.0.0.1"), wantOk: false},
		{name: "extra_fields", err: errors.New("MOVED 3999 127.0.0.1:6381 junk"), wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, ok := parseRelocation(tt.err)
			if ok != tt.wantOk {
				t.Fatalf("parseRelocation ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if rel.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", rel.Kind, tt.wantKind)
			}
			if rel.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", rel.Host, tt.wantHost)
			}
			if rel.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", rel.Port, tt.wantPort)
			}
			if rel.Slot != tt.wantSlot {
				t.Errorf("Slot = %d, want %d", rel.Slot, tt.wantSlot)
			}
		})
	}
}

func TestRelocationError_Unwrap(t *testing.T) {
	raw := errors.New("MOVED 1 h:2")
	rel, ok := parseRelocation(raw)
	if !ok {
		t.Fatal("parseRelocation failed")
	}
	if !errors.Is(rel, raw) {
		t.Error("RelocationError should unwrap to the raw error")
	}
	if rel.Error() != raw.Error() {
		t.Errorf("Error() = %q, want %q", rel.Error(), raw.Error())
	}
}
