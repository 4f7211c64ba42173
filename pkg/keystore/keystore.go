package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

// KeyInfo describes a stored key without its private half.
type KeyInfo struct {
	Kid       string            `json:"kid"`
	Algorithm signing.Algorithm `json:"algorithm"`
	KeySize   int               `json:"key_size"`
	Active    bool              `json:"active"`
	CreatedAt string            `json:"created_at"`
	RetiredAt string            `json:"retired_at,omitempty"`
}

type KeyStore struct {
	store   store.KeyPairStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	audit   *audit.Log

	mu    sync.RWMutex
	byKid map[string]*signing.Key
}

type Option func(*KeyStore)

func WithLogger(logger *zap.Logger) Option {
	return func(k *KeyStore) { k.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(k *KeyStore) { k.metrics = m }
}

// WithAudit records key changes and refused activations.
func WithAudit(log *audit.Log) Option {
	return func(k *KeyStore) { k.audit = log }
}

func New(s store.KeyPairStore, opts ...Option) *KeyStore {
	k := &KeyStore{
		store:  s,
		logger: zap.NewNop(),
		byKid:  map[string]*signing.Key{},
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Generate creates and persists an inactive key.
func (k *KeyStore) Generate(ctx context.Context, alg signing.Algorithm, bits int, actor string) (*signing.Key, error) {
	key, err := signing.GenerateKeyPair(alg, bits)
	if err != nil {
		return nil, err
	}
	if err := k.put(ctx, "keystore.Generate", key, actor); err != nil {
		return nil, err
	}
	return key, nil
}

// Import persists an existing PEM private key as an inactive key. The PEM is
// structurally validated before it is parsed.
func (k *KeyStore) Import(ctx context.Context, alg signing.Algorithm, privatePEM []byte, actor string) (*signing.Key, error) {
	key, err := signing.ParsePrivateKeyPEM(alg, privatePEM)
	if err != nil {
		return nil, err
	}
	if err := k.put(ctx, "keystore.Import", key, actor); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *KeyStore) put(ctx context.Context, op string, key *signing.Key, actor string) error {
	kp := &model.KeyPair{
		ID:         key.Fingerprint(),
		Algorithm:  key.Algorithm().String(),
		KeySize:    key.Size(),
		PublicKey:  string(key.PublicPEM()),
		PrivateKey: string(key.PrivatePEM()),
	}
	if err := k.store.CreateKeyPair(ctx, kp); err != nil {
		return errs.Storage(op, err)
	}
	k.cache(key)
	k.logger.Info("signing key stored",
		zap.String("kid", kp.ID),
		zap.String("algorithm", kp.Algorithm),
		zap.Int("key_size", kp.KeySize))
	k.record(ctx, audit.KeyEvent{
		Kind:      audit.EventKeyGenerated,
		Kid:       kp.ID,
		Algorithm: kp.Algorithm,
		KeySize:   kp.KeySize,
		By:        actor,
	})
	return nil
}

func (k *KeyStore) record(ctx context.Context, e audit.Event) {
	if k.audit != nil {
		k.audit.LogEvent(ctx, e)
	}
}

// Activate makes kid the active key for its algorithm. It fails with
// ConflictingActiveKey when another key for the algorithm is already active;
// the check and the write happen in one store operation.
func (k *KeyStore) Activate(ctx context.Context, kid, actor string) error {
	const op = "keystore.Activate"
	return k.activate(ctx, op, kid, false, actor)
}

// ActivateReplacing makes kid the active key, retiring whichever key is
// active for its algorithm in the same store operation.
func (k *KeyStore) ActivateReplacing(ctx context.Context, kid, actor string) error {
	const op = "keystore.ActivateReplacing"
	return k.activate(ctx, op, kid, true, actor)
}

// Rotate generates a key and activates it in place of the current active key
// for alg. The retired key keeps verifying tokens it signed.
func (k *KeyStore) Rotate(ctx context.Context, alg signing.Algorithm, bits int, actor string) (*signing.Key, error) {
	const op = "keystore.Rotate"
	key, err := k.Generate(ctx, alg, bits, actor)
	if err != nil {
		return nil, err
	}
	if err := k.activate(ctx, op, key.Fingerprint(), true, actor); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *KeyStore) activate(ctx context.Context, op, kid string, replace bool, actor string) error {
	err := k.store.ActivateKeyPair(ctx, kid, replace)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrActiveKeyConflict):
		k.record(ctx, audit.RejectedEvent{
			Operation: "activate_key",
			Code:      errs.CodeConflictingActiveKey,
			By:        actor,
			Detail:    kid,
		})
		return errs.New(errs.CodeConflictingActiveKey, op, "another key is already active for this algorithm")
	case errors.Is(err, store.ErrNotFound):
		return errs.New(errs.CodeNotFound, op, "key %s not found", kid)
	default:
		return errs.Storage(op, err)
	}

	kp, err := k.store.KeyPairByID(ctx, kid)
	if err != nil {
		return errs.Storage(op, err)
	}
	k.metrics.KeyActivated(kp.Algorithm)
	k.logger.Info("signing key activated",
		zap.String("kid", kid),
		zap.String("algorithm", kp.Algorithm),
		zap.Bool("rotation", replace))
	kind := audit.EventKeyActivated
	if replace {
		kind = audit.EventKeyRotated
	}
	k.record(ctx, audit.KeyEvent{Kind: kind, Kid: kid, Algorithm: kp.Algorithm, By: actor})
	return nil
}

func (k *KeyStore) Deactivate(ctx context.Context, kid, actor string) error {
	const op = "keystore.Deactivate"
	err := k.store.DeactivateKeyPair(ctx, kid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errs.New(errs.CodeNotFound, op, "key %s not found", kid)
	case err != nil:
		return errs.Storage(op, err)
	}
	k.logger.Info("signing key deactivated", zap.String("kid", kid))
	k.record(ctx, audit.KeyEvent{Kind: audit.EventKeyDeactivated, Kid: kid, By: actor})
	return nil
}

// Active returns the signing key currently active for alg, or NoActiveKey.
func (k *KeyStore) Active(ctx context.Context, alg signing.Algorithm) (*signing.Key, error) {
	const op = "keystore.Active"
	kp, err := k.store.ActiveKeyPair(ctx, alg.String())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.CodeNoActiveKey, op, "no active %s key", alg)
	case err != nil:
		return nil, errs.Storage(op, err)
	}
	return k.load(op, kp)
}

// ByKid returns the key identified by a token kid header, active or not.
func (k *KeyStore) ByKid(ctx context.Context, kid string) (*signing.Key, error) {
	const op = "keystore.ByKid"
	k.mu.RLock()
	key, ok := k.byKid[kid]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	kp, err := k.store.KeyPairByID(ctx, kid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.CodeNotFound, op, "key %s not found", kid)
	case err != nil:
		return nil, errs.Storage(op, err)
	}
	return k.load(op, kp)
}

func (k *KeyStore) load(op string, kp *model.KeyPair) (*signing.Key, error) {
	k.mu.RLock()
	key, ok := k.byKid[kp.ID]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	alg, err := signing.ParseAlgorithm(kp.Algorithm)
	if err != nil {
		return nil, err
	}
	key, err = signing.ParsePrivateKeyPEM(alg, []byte(kp.PrivateKey))
	if err != nil {
		return nil, err
	}
	if key.Fingerprint() != kp.ID {
		return nil, errs.New(errs.CodeInvalidKeyMaterial, op, "stored key %s has a mismatched fingerprint", kp.ID)
	}
	k.cache(key)
	return key, nil
}

func (k *KeyStore) cache(key *signing.Key) {
	k.mu.Lock()
	k.byKid[key.Fingerprint()] = key
	k.mu.Unlock()
}

// List returns metadata for every stored key.
func (k *KeyStore) List(ctx context.Context) ([]KeyInfo, error) {
	kps, err := k.store.ListKeyPairs(ctx)
	if err != nil {
		return nil, errs.Storage("keystore.List", err)
	}
	infos := make([]KeyInfo, 0, len(kps))
	for _, kp := range kps {
		info := KeyInfo{
			Kid:       kp.ID,
			Algorithm: signing.Algorithm(kp.Algorithm),
			KeySize:   kp.KeySize,
			Active:    kp.IsActive,
			CreatedAt: kp.CreatedAt.UTC().Format(time.RFC3339),
		}
		if kp.RetiredAt != nil {
			info.RetiredAt = kp.RetiredAt.UTC().Format(time.RFC3339)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PublicKeys returns verify-only keys for every stored key pair.
func (k *KeyStore) PublicKeys(ctx context.Context) ([]*signing.Key, error) {
	kps, err := k.store.ListKeyPairs(ctx)
	if err != nil {
		return nil, errs.Storage("keystore.PublicKeys", err)
	}
	keys := make([]*signing.Key, 0, len(kps))
	for _, kp := range kps {
		alg, err := signing.ParseAlgorithm(kp.Algorithm)
		if err != nil {
			return nil, err
		}
		key, err := signing.ParsePublicKeyPEM(alg, []byte(kp.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", kp.ID, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
