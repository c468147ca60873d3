package proxy

import "testing"

func TestState_String(t *testing.T) {
	cases := map[State]string{Stopped: "Stopped", Running: "Running", Errored: "Error"}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestHostOnly_StripsPort(t *testing.T) {
	if got := hostOnly("api.example.com:443"); got != "api.example.com" {
		t.Errorf("hostOnly() = %q", got)
	}
	if got := hostOnly("api.example.com"); got != "api.example.com" {
		t.Errorf("hostOnly() = %q", got)
	}
}

func TestHostWithPort_AddsDefaultOnly(t *testing.T) {
	if got := hostWithPort("example.com", "80"); got != "example.com:80" {
		t.Errorf("hostWithPort() = %q", got)
	}
	if got := hostWithPort("example.com:8080", "80"); got != "example.com:8080" {
		t.Errorf("hostWithPort() = %q", got)
	}
}
