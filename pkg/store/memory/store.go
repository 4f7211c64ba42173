package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	keys     map[string]model.KeyPair
	licenses map[string]model.License
	revoked  map[string]model.RevokedToken
	audit    map[string]model.AuditEntry

	// FailWith, when set, is returned by every call. Tests use it to simulate
	// an unreachable backend.
	FailWith error
}

func New() *Store {
	return &Store{
		keys:     map[string]model.KeyPair{},
		licenses: map[string]model.License{},
		revoked:  map[string]model.RevokedToken{},
		audit:    map[string]model.AuditEntry{},
	}
}

func (s *Store) CheckConnectivity(ctx context.Context) error {
	return s.FailWith
}

// Key pairs

func (s *Store) CreateKeyPair(ctx context.Context, kp *model.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = time.Now().UTC()
	}
	stored := *kp
	stored.IsActive = false
	s.keys[kp.ID] = stored
	return nil
}

func (s *Store) ActivateKeyPair(ctx context.Context, id string, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	kp, ok := s.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	if kp.IsActive {
		return nil
	}
	now := time.Now().UTC()
	for otherID, other := range s.keys {
		if otherID == id || other.Algorithm != kp.Algorithm || !other.IsActive {
			continue
		}
		if !replace {
			return store.ErrActiveKeyConflict
		}
		other.IsActive = false
		other.RetiredAt = &now
		s.keys[otherID] = other
	}
	kp.IsActive = true
	kp.ActivatedAt = &now
	kp.RetiredAt = nil
	s.keys[id] = kp
	return nil
}

func (s *Store) DeactivateKeyPair(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	kp, ok := s.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	if kp.IsActive {
		now := time.Now().UTC()
		kp.IsActive = false
		kp.RetiredAt = &now
		s.keys[id] = kp
	}
	return nil
}

func (s *Store) ActiveKeyPair(ctx context.Context, algorithm string) (*model.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	for _, kp := range s.keys {
		if kp.Algorithm == algorithm && kp.IsActive {
			found := kp
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) KeyPairByID(ctx context.Context, id string) (*model.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	kp, ok := s.keys[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &kp, nil
}

func (s *Store) ListKeyPairs(ctx context.Context) ([]model.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make([]model.KeyPair, 0, len(s.keys))
	for _, kp := range s.keys {
		out = append(out, kp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Licenses

func cloneLicense(l model.License) model.License {
	l.FeaturesEnabled = append(pq.StringArray(nil), l.FeaturesEnabled...)
	l.RenewalHistory = append(model.RenewalHistory(nil), l.RenewalHistory...)
	return l
}

func (s *Store) CreateLicense(ctx context.Context, l *model.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, exists := s.licenses[l.ID]; exists {
		return store.ErrVersionConflict
	}
	if l.Version == 0 {
		l.Version = 1
	}
	l.UpdatedAt = time.Now().UTC()
	s.licenses[l.ID] = cloneLicense(*l)
	return nil
}

func (s *Store) GetLicense(ctx context.Context, id string) (*model.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	l, ok := s.licenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneLicense(l)
	return &found, nil
}

func (s *Store) UpdateLicense(ctx context.Context, l *model.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	current, ok := s.licenses[l.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Version != l.Version {
		return store.ErrVersionConflict
	}
	l.Version++
	l.UpdatedAt = time.Now().UTC()
	s.licenses[l.ID] = cloneLicense(*l)
	return nil
}

func (s *Store) ListLicensesByStatus(ctx context.Context, status model.LicenseStatus) ([]model.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var out []model.License
	for _, l := range s.licenses {
		if l.Status == status {
			out = append(out, cloneLicense(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (s *Store) CountLicensesByStatus(ctx context.Context) (map[model.LicenseStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	counts := map[model.LicenseStatus]int64{}
	for _, l := range s.licenses {
		counts[l.Status]++
	}
	return counts, nil
}

func (s *Store) CountLicensesExpiringBetween(ctx context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	var n int64
	for _, l := range s.licenses {
		if l.Status == model.LicenseStatusActive && !l.ExpiresAt.Before(from) && l.ExpiresAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// Revocations

func (s *Store) InsertRevokedToken(ctx context.Context, entry *model.RevokedToken) (*model.RevokedToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, false, s.FailWith
	}
	if existing, ok := s.revoked[entry.JTI]; ok {
		return &existing, false, nil
	}
	s.revoked[entry.JTI] = *entry
	stored := *entry
	return &stored, true, nil
}

func (s *Store) RevokedTokenByJTI(ctx context.Context, jti string) (*model.RevokedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	entry, ok := s.revoked[jti]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &entry, nil
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return false, s.FailWith
	}
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *Store) CountRevokedTokens(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	return int64(len(s.revoked)), nil
}

// Audit

func (s *Store) AppendAuditEntry(ctx context.Context, entry *model.AuditEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return false, s.FailWith
	}
	if _, ok := s.audit[entry.EventID]; ok {
		return false, nil
	}
	s.audit[entry.EventID] = *entry
	return true, nil
}

func (s *Store) PurgeAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	var n int64
	for id, e := range s.audit {
		if e.Timestamp.Before(cutoff) {
			delete(s.audit, id)
			n++
		}
	}
	return n, nil
}

func matchesAudit(e model.AuditEntry, f store.AuditFilter) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if e.Severity < f.MinSeverity {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.WorkshopCode != "" && e.WorkshopCode != f.WorkshopCode {
		return false
	}
	return true
}

func (s *Store) ListAuditEntries(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var out []model.AuditEntry
	for _, e := range s.audit {
		if matchesAudit(e, filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter store.AuditFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	var n int64
	for _, e := range s.audit {
		if matchesAudit(e, filter) {
			n++
		}
	}
	return n, nil
}
