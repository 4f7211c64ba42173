// Package app assembles the licensing components from a Config and a
// store. The CLI and the integration suite share it so both run the same
// graph.
package app

import (
	"io"
	"net"
	"net/http"
	"net/smtp"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/keystore"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/notify"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/revocation"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server/endpoints"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server/middleware"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

type App struct {
	Config     *config.Config
	Store      store.Store
	Audit      *audit.Log
	Keys       *keystore.KeyStore
	Revocation *revocation.Registry
	Issuer     *token.Issuer
	Validator  *token.Validator
	Licenses   *license.Manager
	Metrics    *metrics.Metrics

	logger *zap.Logger
	redis  *redis.Client
}

type Option func(*options)

type options struct {
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	auditWriter io.Writer
	sink        notify.Sink
	redis       *redis.Client
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now in every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithAuditWriter sets where RFC5424 audit lines go. The default is stderr.
func WithAuditWriter(w io.Writer) Option {
	return func(o *options) { o.auditWriter = w }
}

// WithSink replaces the alert sink built from the config.
func WithSink(sink notify.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithRedis uses client for the revocation cache instead of dialing
// redis_url.
func WithRedis(client *redis.Client) Option {
	return func(o *options) { o.redis = client }
}

// New wires every component on top of st. cfg must already be valid.
func New(cfg *config.Config, st store.Store, opts ...Option) (*App, error) {
	o := options{
		logger:      zap.NewNop(),
		now:         time.Now,
		auditWriter: os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:  cfg,
		Store:   st,
		Metrics: o.metrics,
		logger:  o.logger,
	}

	sink := o.sink
	if sink == nil {
		sink = Sink(cfg, o.logger)
	}
	a.Audit = audit.New(st,
		audit.WithWriter(o.auditWriter),
		audit.WithSink(sink),
		audit.WithRecipients(cfg.AlertRecipients),
		audit.WithLogger(o.logger.Named("audit")),
		audit.WithMetrics(o.metrics),
		audit.WithClock(o.now),
		audit.WithAlertTimeout(cfg.NotificationTimeout()),
		audit.WithStoreTimeout(cfg.StorageTimeout()))

	a.Keys = keystore.New(st,
		keystore.WithLogger(o.logger.Named("keystore")),
		keystore.WithMetrics(o.metrics),
		keystore.WithAudit(a.Audit))

	regOpts := []revocation.Option{
		revocation.WithLogger(o.logger.Named("revocation")),
		revocation.WithClock(o.now),
	}
	a.redis = o.redis
	if a.redis == nil && cfg.RedisURL != "" {
		client, err := revocation.Connect(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
	}
	if a.redis != nil {
		regOpts = append(regOpts, revocation.WithCache(revocation.NewRedisCache(a.redis, revocation.DefaultKeyPrefix)))
	}
	a.Revocation = revocation.New(st, regOpts...)

	a.Issuer = token.NewIssuer(a.Keys,
		token.WithAlgorithm(cfg.Algorithm()),
		token.WithIssuerName(cfg.TokenIssuer),
		token.WithIssuerClock(o.now))
	a.Validator = token.NewValidator(a.Keys,
		token.WithRevocations(a.Revocation),
		token.WithAudit(a.Audit),
		token.WithMetrics(o.metrics),
		token.WithLogger(o.logger.Named("token")),
		token.WithValidatorClock(o.now),
		token.WithLeeway(cfg.TokenLeeway()))

	a.Licenses = license.New(st, a.Issuer, a.Revocation,
		license.WithAudit(a.Audit),
		license.WithMetrics(o.metrics),
		license.WithLogger(o.logger.Named("license")),
		license.WithClock(o.now),
		license.WithHealth(st),
		license.WithKeys(a.Keys),
		license.WithExpiryWarning(cfg.ExpiryWarning()))
	return a, nil
}

// Sink builds the alert fan-out from the config: always the operational
// log, plus webhook and SMTP when configured.
func Sink(cfg *config.Config, logger *zap.Logger) notify.Sink {
	sinks := notify.MultiSink{notify.NewLogSink(logger.Named("alerts"))}
	if cfg.AlertWebhookURL != "" {
		client := &http.Client{Timeout: cfg.NotificationTimeout()}
		sinks = append(sinks, notify.NewWebhookSink(cfg.AlertWebhookURL, client))
	}
	if cfg.SMTPAddress != "" && cfg.SMTPFrom != "" {
		sinks = append(sinks, notify.NewSMTPSink(cfg.SMTPAddress, cfg.SMTPFrom, smtpAuth(cfg.SMTPAddress)))
	}
	return sinks
}

// smtpAuth uses PLAIN auth when LICENSING_SMTP_USERNAME is set.
func smtpAuth(addr string) smtp.Auth {
	user := os.Getenv("LICENSING_SMTP_USERNAME")
	if user == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return smtp.PlainAuth("", user, os.Getenv("LICENSING_SMTP_PASSWORD"), host)
}

// Apply pushes the runtime-reloadable settings of cfg into the running
// components. Other attributes need a restart.
func (a *App) Apply(cfg *config.Config) {
	a.Validator.SetLeeway(cfg.TokenLeeway())
	a.Licenses.SetExpiryWarning(cfg.ExpiryWarning())
	a.Audit.SetRecipients(cfg.AlertRecipients)
	a.logger.Info("Applied configuration",
		zap.Int("token_leeway_seconds", cfg.TokenLeewaySeconds),
		zap.Int("expiry_warning_days", cfg.ExpiryWarningDays),
		zap.Int("alert_recipients", len(cfg.AlertRecipients)))
}

// Server builds the HTTP server with every endpoint registered.
func (a *App) Server(host, port, adminToken string) *server.Server {
	s := server.NewServer(host, port)
	s.Licenses = a.Licenses
	s.Validator = a.Validator
	s.Audit = a.Audit
	s.Keys = a.Keys
	s.Health = a.Store
	s.Metrics = a.Metrics
	s.Logger = a.logger.Named("server")
	s.Limiter = rate.NewLimiter(rate.Limit(a.Config.ValidateRateLimit), a.Config.ValidateRateBurst)
	s.Admin = middleware.NewAdminAuthenticator(adminToken).Middleware
	endpoints.RegisterAll(s)
	return s
}

// Close waits for pending alerts and releases the Redis client.
func (a *App) Close() error {
	a.Audit.Wait()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
