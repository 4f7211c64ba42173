package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

// LicenseService is the lifecycle surface the endpoints drive.
type LicenseService interface {
	Issue(ctx context.Context, req license.IssueRequest) (*license.IssuanceResult, error)
	Get(ctx context.Context, id string) (*model.License, error)
	Renew(ctx context.Context, id string, req license.RenewRequest) (*license.RenewalResult, error)
	Reactivate(ctx context.Context, id string, req license.RenewRequest) (*license.RenewalResult, error)
	Revoke(ctx context.Context, id string, req license.RevokeRequest) (*license.RevocationResult, error)
	CheckExpiration(ctx context.Context) (*license.SweepResult, error)
	Dashboard(ctx context.Context) (*license.Dashboard, error)
}

type TokenValidator interface {
	Validate(ctx context.Context, tok, fingerprint string, opts ...token.ValidateOption) (*token.Result, error)
}

type AuditQuery interface {
	Query(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error)
}

type PublicKeySource interface {
	PublicKeys(ctx context.Context) ([]*signing.Key, error)
}

type Server struct {
	Licenses  LicenseService
	Validator TokenValidator
	Audit     AuditQuery
	Keys      PublicKeySource
	Health    store.HealthStore
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// Limiter throttles /tokens/validate. Nil disables throttling.
	Limiter *rate.Limiter

	// Admin wraps the management endpoints.
	Admin func(http.Handler) http.Handler

	Router *mux.Router
	srv    *http.Server
}

func NewServer(host string, port string) *Server {
	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.RecoveryHandler()(
			handlers.ProxyHeaders(handlers.LoggingHandler(os.Stdout, router)),
		),
		Addr:         host + ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Logger: zap.NewNop(),
		Router: router,
		srv:    srv,
	}
}

func (s *Server) Addr() string {
	return s.srv.Addr
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
