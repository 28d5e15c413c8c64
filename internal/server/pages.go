// ABOUTME: Server-rendered HTML pages: login, setup, library, admin, public share view
// ABOUTME: Templates and static assets are embedded; share descriptions render from markdown

package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/store"
)

var pageFuncs = template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}

// Template data types
type loginPageData struct {
	Title string
	User  *auth.Principal
	Error string
}

type setupPageData struct {
	Title string
	User  *auth.Principal
	Error string
}

type libraryPageData struct {
	Title       string
	User        *auth.Principal
	Books       []*store.Book
	Collections []*store.Collection
}

type adminPageData struct {
	Title       string
	User        *auth.Principal
	Users       []*store.User
	OpenStreams int64
}

type sharePageData struct {
	Title       string
	User        *auth.Principal
	Collection  *SharedCollection
	Description template.HTML
	Books       []SharedBook
}

// renderPage executes the named page template inside base.html.
func (s *Server) renderPage(w http.ResponseWriter, status int, page string, data any) {
	tmpl := template.Must(template.New("base.html").Funcs(pageFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+page))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// staticHandler serves the embedded static directory under /static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handleRobots keeps crawlers off capability URLs.
func handleRobots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("User-agent: *\nDisallow: /share/\nDisallow: /api/\n"))
}

// handleLoginPage handles GET /login.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if principal(r) != nil {
		http.Redirect(w, r, "/library", http.StatusSeeOther)
		return
	}
	if open, err := s.setupOpen(r.Context()); err == nil && open {
		http.Redirect(w, r, "/setup", http.StatusSeeOther)
		return
	}

	data := loginPageData{Title: "Sign in"}
	if r.URL.Query().Get("error") != "" {
		data.Error = "Invalid username or password"
	}
	s.renderPage(w, http.StatusOK, "login.html", data)
}

// handleSetupPage handles GET /setup.
func (s *Server) handleSetupPage(w http.ResponseWriter, r *http.Request) {
	open, err := s.setupOpen(r.Context())
	if err != nil {
		s.logger.Error("failed to count users", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !open {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.renderSetupPage(w, http.StatusOK, "")
}

func (s *Server) renderSetupPage(w http.ResponseWriter, status int, errMsg string) {
	s.renderPage(w, status, "setup.html", setupPageData{Title: "Setup", Error: errMsg})
}

// handleLibraryPage handles GET /library.
func (s *Server) handleLibraryPage(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	books, err := s.store.ListBooks(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("failed to list books", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	collections, err := s.store.ListCollections(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("failed to list collections", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, http.StatusOK, "library.html", libraryPageData{
		Title:       "Library",
		User:        p,
		Books:       books,
		Collections: collections,
	})
}

// handleAdminPage handles GET /admin.
func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, http.StatusOK, "admin.html", adminPageData{
		Title:       "Admin",
		User:        principal(r),
		Users:       users,
		OpenStreams: s.live.Open(),
	})
}

// handleSharePage handles GET /share/{token}. Unknown and revoked tokens
// render the same 404 page.
func (s *Server) handleSharePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	c, books := s.resolver.ListBooks(r.Context(), r.PathValue("token"))
	if c == nil {
		s.renderPage(w, http.StatusNotFound, "share.html", sharePageData{Title: "Not found"})
		return
	}

	data := sharePageData{
		Title: c.Name,
		Collection: &SharedCollection{
			Name:      c.Name,
			SharedAt:  c.SharedAt,
			BookCount: len(books),
		},
		Description: s.renderMarkdown(r.Context(), c.Description),
		Books:       make([]SharedBook, 0, len(books)),
	}
	for _, b := range books {
		data.Books = append(data.Books, toSharedBook(b))
	}
	s.renderPage(w, http.StatusOK, "share.html", data)
}

// renderMarkdown converts a collection description to HTML. goldmark drops
// raw HTML by default, so the output is safe to mark as template.HTML.
func (s *Server) renderMarkdown(ctx context.Context, md string) template.HTML {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		s.logger.WarnContext(ctx, "failed to convert markdown", "error", err)
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
