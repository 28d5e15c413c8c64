// Package gateway is the per-request authorization decision point of
// shelf-gateway. Every request passes through Gateway.Middleware before any
// route handler runs.
//
// # Classification
//
// Rules.Classify maps a path to a RouteClass using an ordered list of path
// prefixes. The first match wins and the order is part of the contract:
//
//  1. public pages (/login, /setup)
//  2. share page (/share/)
//  3. identity provider routes (/api/auth/)
//  4. share API (/api/share/)
//  5. desktop IPC API (/api/desktop/)
//  6. admin API (/api/admin/), then any other API (/api/)
//  7. admin pages (/admin), then any other page
//
// Rules.Ordered exposes the list so it can be reviewed (see the "routes"
// command of shelf-gateway). Static assets and well-known files are excluded
// before classification and never decoded.
//
// # Decisions
//
// Decide is a small table over (RouteClass, *auth.Principal):
//
//	class                       no principal     non-admin        admin
//	public/share/identity/...   continue         continue         continue
//	api                         401              continue         continue
//	admin-api                   401              403              continue
//	page                        redirect /login  continue         continue
//	admin-page                  redirect /login  redirect /library continue
//
// API routes never redirect and pages never get a bare status code. The
// gateway decodes the session token at most once per request and does no I/O.
package gateway
