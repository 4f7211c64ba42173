package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	psnet "github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"
)

// Components are the machine attributes a fingerprint is derived from.
type Components struct {
	HostID   string `json:"host_id"`
	Hostname string `json:"hostname"`
	MAC      string `json:"mac_address"`
	CPU      string `json:"cpu"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
}

// Fingerprint is a derived identifier together with what it was derived from.
type Fingerprint struct {
	Value       string     `json:"fingerprint"`
	Components  Components `json:"components"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// ErrNoStableAttributes is returned when neither a host id nor a MAC address
// could be read; a fingerprint from CPU and OS alone would collide across
// identical machines.
var ErrNoStableAttributes = errors.New("fingerprint: no stable machine attributes available")

// Derive hashes the stable components.
func Derive(c Components) (string, error) {
	hostID := normalize(c.HostID)
	mac := normalize(c.MAC)
	if hostID == "" && mac == "" {
		return "", ErrNoStableAttributes
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		"host:" + hostID,
		"mac:" + mac,
		"cpu:" + normalize(c.CPU),
		"os:" + normalize(c.OS),
		"arch:" + normalize(c.Arch),
	}, "|")))
	return hex.EncodeToString(sum[:]), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Probe reads machine attributes.
type Probe func(ctx context.Context) (Components, error)

// SystemProbe reads the running machine through gopsutil. Attributes that
// cannot be read are left empty.
func SystemProbe(ctx context.Context) (Components, error) {
	c := Components{OS: runtime.GOOS, Arch: runtime.GOARCH}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return c, fmt.Errorf("fingerprint: host info: %w", err)
	}
	c.HostID = info.HostID
	c.Hostname = info.Hostname
	if info.Platform != "" {
		c.OS = info.OS + "/" + info.Platform
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		c.CPU = strings.TrimSpace(cpus[0].VendorID + " " + cpus[0].ModelName)
	}

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		c.MAC = primaryMAC(ifaces)
	}
	return c, nil
}

// primaryMAC picks the lowest-named interface that is up, not loopback and
// has a non-zero address, falling back to any interface with an address.
// Sorting keeps the choice stable across reboots that reorder interfaces.
func primaryMAC(ifaces psnet.InterfaceStatList) string {
	sorted := slices.Clone(ifaces)
	slices.SortFunc(sorted, func(a, b psnet.InterfaceStat) int {
		return strings.Compare(a.Name, b.Name)
	})

	var fallback string
	for _, iface := range sorted {
		mac := iface.HardwareAddr
		if mac == "" || mac == "00:00:00:00:00:00" {
			continue
		}
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if slices.Contains(iface.Flags, "up") {
			return mac
		}
		if fallback == "" {
			fallback = mac
		}
	}
	return fallback
}

// Generator derives and caches the local fingerprint.
type Generator struct {
	probe  Probe
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	cached *Fingerprint
}

type Option func(*Generator)

func WithProbe(p Probe) Option {
	return func(g *Generator) { g.probe = p }
}

// WithCacheTTL sets how long a derived fingerprint is reused. Zero disables
// caching.
func WithCacheTTL(d time.Duration) Option {
	return func(g *Generator) { g.ttl = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		probe:  SystemProbe,
		ttl:    time.Hour,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the fingerprint of the machine.
func (g *Generator) Generate(ctx context.Context) (*Fingerprint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.cached != nil && g.ttl > 0 && now.Sub(g.cached.GeneratedAt) < g.ttl {
		return g.cached, nil
	}

	c, err := g.probe(ctx)
	if err != nil {
		return nil, err
	}
	value, err := Derive(c)
	if err != nil {
		return nil, err
	}
	if c.MAC == "" {
		g.logger.Warn("no MAC address found, fingerprint relies on host id")
	}

	fp := &Fingerprint{Value: value, Components: c, GeneratedAt: now}
	g.cached = fp
	g.logger.Debug("fingerprint generated", zap.String("fingerprint", value))
	return fp, nil
}

// Reset drops the cached fingerprint.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.cached = nil
	g.mu.Unlock()
}
