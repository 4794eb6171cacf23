package middleware

import "testing"

func TestLoopbackOriginPattern(t *testing.T) {
	allowed := []string{
		"http://localhost",
		"http://localhost:5173",
		"http://localhost:65535",
		"http://127.0.0.1",
		"http://127.0.0.1:8080",
	}
	for _, origin := range allowed {
		if !loopbackOrigin.MatchString(origin) {
			t.Errorf("loopbackOrigin rejected %q, want accepted", origin)
		}
	}

	rejected := []string{
		"https://localhost:5173",
		"http://localhost.evil.com",
		"http://127.0.0.2",
		"http://evil.com",
		"http://localhost:5173/path",
	}
	for _, origin := range rejected {
		if loopbackOrigin.MatchString(origin) {
			t.Errorf("loopbackOrigin accepted %q, want rejected", origin)
		}
	}
}
