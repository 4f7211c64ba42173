package endpoints

import (
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
)

// RegisterAll registers all API endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterLicenseEndpoints(srv)
	RegisterTokenEndpoints(srv)
	RegisterAuditEndpoints(srv)
	RegisterStatusEndpoints(srv)
}
