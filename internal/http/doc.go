// Package http provides the HTTP adapter for site content.
//
// Routes mount under /api:
//   - Sections: /sections, /sections/{id}
//   - Fields: /content/{page}, /content/{page}/{key},
//     /content/{page}/{key}/versions, /content/{page}/{key}/versions/{version}/restore
//   - Live updates: /events (websocket)
//
// Writes require an actor on the request context, normally set by the auth
// middleware wrapping the mux.
package http
