package license

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

type Overview struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	ExpiringSoon  int64            `json:"expiring_soon"`
	RevokedTokens int64            `json:"revoked_tokens"`
}

type Health struct {
	Status string `json:"status"`
	// Storage is "ok" or the reason the probe failed.
	Storage string `json:"storage"`
	// ActiveKey reports whether the issuing algorithm has an active key.
	ActiveKey bool `json:"active_key"`
	// RecentAlerts counts High and Critical audit events of the last 24h.
	RecentAlerts int64    `json:"recent_alerts"`
	Issues       []string `json:"issues,omitempty"`
}

type Dashboard struct {
	GeneratedAt     time.Time `json:"generated_at"`
	LicenseOverview Overview  `json:"license_overview"`
	SystemHealth    Health    `json:"system_health"`
}

// Dashboard aggregates counts and health probes. It only reads, and a
// failing probe lowers the health status instead of failing the call.
func (m *Manager) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := m.now().UTC()
	d := &Dashboard{
		GeneratedAt:     now,
		LicenseOverview: Overview{ByStatus: map[string]int64{}},
		SystemHealth:    Health{Storage: "ok"},
	}

	var (
		mu       sync.Mutex
		degraded bool
		down     bool
	)
	issue := func(msg string, fatal bool) {
		mu.Lock()
		defer mu.Unlock()
		d.SystemHealth.Issues = append(d.SystemHealth.Issues, msg)
		if fatal {
			down = true
		} else {
			degraded = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	if m.health != nil {
		g.Go(func() error {
			if err := m.health.CheckConnectivity(gctx); err != nil {
				mu.Lock()
				d.SystemHealth.Storage = err.Error()
				mu.Unlock()
				issue("storage unreachable", true)
			}
			return nil
		})
	}
	g.Go(func() error {
		counts, err := m.store.CountLicensesByStatus(gctx)
		if err != nil {
			issue("license counts unavailable", true)
			return nil
		}
		mu.Lock()
		for status, n := range counts {
			d.LicenseOverview.ByStatus[status.String()] = n
			d.LicenseOverview.Total += n
		}
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		n, err := m.store.CountLicensesExpiringBetween(gctx, now, now.Add(m.ExpiryWarning()))
		if err != nil {
			issue("expiry window count unavailable", false)
			return nil
		}
		mu.Lock()
		d.LicenseOverview.ExpiringSoon = n
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		n, err := m.revoker.Count(gctx)
		if err != nil {
			issue("revocation registry unavailable", true)
			return nil
		}
		mu.Lock()
		d.LicenseOverview.RevokedTokens = n
		mu.Unlock()
		return nil
	})
	if m.keys != nil {
		g.Go(func() error {
			_, err := m.keys.Active(gctx, m.issuer.Algorithm())
			mu.Lock()
			d.SystemHealth.ActiveKey = err == nil
			mu.Unlock()
			if err != nil {
				issue("no active "+m.issuer.Algorithm().String()+" signing key", false)
			}
			return nil
		})
	}
	if m.audit != nil {
		g.Go(func() error {
			n, err := m.audit.Count(gctx, store.AuditFilter{
				Since:       now.Add(-24 * time.Hour),
				MinSeverity: model.SeverityHigh,
			})
			if err != nil {
				issue("audit log unavailable", false)
				return nil
			}
			mu.Lock()
			d.SystemHealth.RecentAlerts = n
			mu.Unlock()
			if n > 0 {
				issue("high severity audit events in the last 24h", false)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, status := range model.LicenseStatusValues() {
		if _, ok := d.LicenseOverview.ByStatus[status.String()]; !ok {
			d.LicenseOverview.ByStatus[status.String()] = 0
		}
	}

	switch {
	case down:
		d.SystemHealth.Status = HealthUnhealthy
	case degraded:
		d.SystemHealth.Status = HealthDegraded
	default:
		d.SystemHealth.Status = HealthHealthy
	}
	return d, nil
}
