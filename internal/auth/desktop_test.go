package auth

import (
	"net/http"
	"testing"
)

func TestIsDesktopAuthorized(t *testing.T) {
	const secret = "desk-secret"

	tests := []struct {
		name   string
		cfg    DesktopConfig
		header string
		want   bool
	}{
		{name: "enabled, configured, matching header", cfg: DesktopConfig{Enabled: true, Token: secret}, header: secret, want: true},
		{name: "disabled", cfg: DesktopConfig{Enabled: false, Token: secret}, header: secret},
		{name: "no configured secret", cfg: DesktopConfig{Enabled: true}, header: secret},
		{name: "no configured secret, empty header", cfg: DesktopConfig{Enabled: true}, header: ""},
		{name: "missing header", cfg: DesktopConfig{Enabled: true, Token: secret}},
		{name: "wrong header", cfg: DesktopConfig{Enabled: true, Token: secret}, header: "desk-secreT"},
		{name: "prefix of secret", cfg: DesktopConfig{Enabled: true, Token: secret}, header: "desk"},
		{name: "secret with trailing data", cfg: DesktopConfig{Enabled: true, Token: secret}, header: secret + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set(DesktopTokenHeader, tt.header)
			}
			if got := IsDesktopAuthorized(h, tt.cfg); got != tt.want {
				t.Errorf("IsDesktopAuthorized() = %v, want %v", got, tt.want)
			}
		})
	}
}
