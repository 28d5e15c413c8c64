// ABOUTME: Shared-secret check for same-machine desktop IPC callers
// ABOUTME: Independent of session state; every failure looks the same to the caller

package auth

import (
	"crypto/subtle"
	"net/http"
)

// DesktopTokenHeader carries the desktop shell's shared secret.
const DesktopTokenHeader = "X-Desktop-Token"

// DesktopConfig is the desktop-mode configuration for one check.
type DesktopConfig struct {
	Enabled bool
	Token   string
}

// IsDesktopAuthorized reports whether h presents the configured desktop secret.
// Desktop mode must be enabled, a secret must be configured, and the header
// must equal it exactly.
func IsDesktopAuthorized(h http.Header, cfg DesktopConfig) bool {
	if !cfg.Enabled || cfg.Token == "" {
		return false
	}
	presented := h.Get(DesktopTokenHeader)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.Token)) == 1
}
