// Package server provides the HTTP server for the licensing API.
//
// The Server holds the lifecycle components behind small interfaces and a
// gorilla/mux router. Endpoints are registered via the endpoints
// subpackage:
//
//	srv := server.NewServer("0.0.0.0", "8080")
//	srv.Licenses = manager
//	srv.Validator = validator
//	srv.Admin = middleware.NewAdminAuthenticator(adminToken).Middleware
//	endpoints.RegisterAll(srv)
//	err := srv.Start()
//
// Management endpoints (/licenses, /dashboard, /audit) require the admin
// bearer token. /tokens/validate, /.well-known/jwks.json, /metrics and
// /status are public; /tokens/validate is rate limited.
package server
