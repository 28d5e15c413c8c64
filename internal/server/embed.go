// ABOUTME: Embeds page templates and static assets into the binary using go:embed
// ABOUTME: Provides templateFS and staticFS for the page handlers

package server

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS
