package keystore

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/audit"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
)

func TestGenerateRejectsWeakAndUnsupported(t *testing.T) {
	ks := New(memory.New())

	_, err := ks.Generate(t.Context(), signing.Algorithm("ES256"), 2048, "admin")
	require.ErrorIs(t, err, errs.ErrUnsupportedAlgorithm)

	_, err = ks.Generate(t.Context(), signing.RS256, 1024, "admin")
	require.ErrorIs(t, err, errs.ErrWeakKey)
}

func TestActiveWithoutKey(t *testing.T) {
	ks := New(memory.New())

	_, err := ks.Active(t.Context(), signing.RS256)
	require.ErrorIs(t, err, errs.ErrNoActiveKey)
}

func TestConcurrentActivation(t *testing.T) {
	ks := New(memory.New())

	k1, err := ks.Generate(t.Context(), signing.RS256, 2048, "admin")
	require.NoError(t, err)
	k2, err := ks.Generate(t.Context(), signing.RS256, 2048, "admin")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, kid := range []string{k1.Fingerprint(), k2.Fingerprint()} {
		wg.Add(1)
		go func(i int, kid string) {
			defer wg.Done()
			results[i] = ks.Activate(t.Context(), kid, "admin")
		}(i, kid)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrConflictingActiveKey):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	infos, err := ks.List(t.Context())
	require.NoError(t, err)
	var active int
	for _, info := range infos {
		if info.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestRotateKeepsRetiredKeyForVerification(t *testing.T) {
	ks := New(memory.New())

	old, err := ks.Generate(t.Context(), signing.RS256, 2048, "admin")
	require.NoError(t, err)
	require.NoError(t, ks.Activate(t.Context(), old.Fingerprint(), "admin"))

	next, err := ks.Rotate(t.Context(), signing.RS256, 2048, "admin")
	require.NoError(t, err)

	active, err := ks.Active(t.Context(), signing.RS256)
	require.NoError(t, err)
	assert.Equal(t, next.Fingerprint(), active.Fingerprint())

	retired, err := ks.ByKid(t.Context(), old.Fingerprint())
	require.NoError(t, err)
	assert.Equal(t, old.Fingerprint(), retired.Fingerprint())

	pubs, err := ks.PublicKeys(t.Context())
	require.NoError(t, err)
	assert.Len(t, pubs, 2)
	for _, pub := range pubs {
		assert.False(t, pub.CanSign())
	}
}

func TestActivateReplacingPromotesExistingKey(t *testing.T) {
	ks := New(memory.New())

	k1, err := ks.Generate(t.Context(), signing.RS384, 2048, "admin")
	require.NoError(t, err)
	k2, err := ks.Generate(t.Context(), signing.RS384, 2048, "admin")
	require.NoError(t, err)
	require.NoError(t, ks.Activate(t.Context(), k1.Fingerprint(), "admin"))

	require.ErrorIs(t, ks.Activate(t.Context(), k2.Fingerprint(), "admin"), errs.ErrConflictingActiveKey)
	require.NoError(t, ks.ActivateReplacing(t.Context(), k2.Fingerprint(), "admin"))

	active, err := ks.Active(t.Context(), signing.RS384)
	require.NoError(t, err)
	assert.Equal(t, k2.Fingerprint(), active.Fingerprint())

	require.ErrorIs(t, ks.ActivateReplacing(t.Context(), "missing", "admin"), errs.ErrNotFound)
}

func TestImportValidatesPEM(t *testing.T) {
	ks := New(memory.New())

	_, err := ks.Import(t.Context(), signing.RS256, []byte("not a pem"), "admin")
	require.ErrorIs(t, err, errs.ErrInvalidKeyMaterial)

	generated, err := signing.GenerateKeyPair(signing.RS384, 2048)
	require.NoError(t, err)
	imported, err := ks.Import(t.Context(), signing.RS384, generated.PrivatePEM(), "admin")
	require.NoError(t, err)
	assert.Equal(t, generated.Fingerprint(), imported.Fingerprint())
}

func TestByKidUnknown(t *testing.T) {
	ks := New(memory.New())

	_, err := ks.ByKid(t.Context(), "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStorageFailure(t *testing.T) {
	s := memory.New()
	ks := New(s)
	s.FailWith = errors.New("connection reset")

	_, err := ks.Active(t.Context(), signing.RS256)
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.Equal(t, errs.KindInfrastructure, errs.KindOf(err))

	err = ks.Activate(t.Context(), "kid", "admin")
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
}

func TestKeyChangesAreAudited(t *testing.T) {
	st := memory.New()
	log := audit.New(st)
	ks := New(st, WithAudit(log))

	k1, err := ks.Generate(t.Context(), signing.RS512, 2048, "ops")
	require.NoError(t, err)
	k2, err := ks.Generate(t.Context(), signing.RS512, 2048, "ops")
	require.NoError(t, err)
	require.NoError(t, ks.Activate(t.Context(), k1.Fingerprint(), "ops"))
	require.ErrorIs(t, ks.Activate(t.Context(), k2.Fingerprint(), "intruder"), errs.ErrConflictingActiveKey)

	count := func(eventType audit.EventType) int {
		entries, err := log.Query(t.Context(), store.AuditFilter{EventType: string(eventType)})
		require.NoError(t, err)
		return len(entries)
	}
	assert.Equal(t, 1, count(audit.EventKeyActivated))
	assert.Equal(t, 1, count(audit.EventOperationRejected))
	assert.GreaterOrEqual(t, count(audit.EventKeyGenerated), 1)
}
