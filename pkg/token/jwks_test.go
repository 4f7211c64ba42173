package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

func TestJWKSRoundTrip(t *testing.T) {
	key := testKey(t)

	data, err := JWKS(StaticKeys{}.Add(key).list())
	require.NoError(t, err)
	assert.Contains(t, string(data), key.Fingerprint())
	assert.NotContains(t, string(data), `"d":`, "private exponent must not be published")

	keys, err := ParseJWKS(data)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	parsed := keys[key.Fingerprint()]
	require.NotNil(t, parsed)
	assert.False(t, parsed.CanSign())
	assert.Equal(t, key.Algorithm(), parsed.Algorithm())
}

func TestParseJWKSVerifiesIssuedTokens(t *testing.T) {
	f := newFixture(t)
	st := f.issue(t)

	data, err := JWKS(f.keys.list())
	require.NoError(t, err)
	published, err := ParseJWKS(data)
	require.NoError(t, err)

	v := NewValidator(published, WithValidatorClock(func() time.Time { return f.now }))
	res, err := v.Validate(t.Context(), st.Token, "fp-1")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestParseJWKSRejectsMismatchedKid(t *testing.T) {
	data, err := JWKS(StaticKeys{}.Add(testKey(t)).list())
	require.NoError(t, err)

	forged := strings.Replace(string(data), testKey(t).Fingerprint(), "someone-else", 1)
	_, err = ParseJWKS([]byte(forged))
	assert.ErrorIs(t, err, errs.ErrInvalidKeyMaterial)

	_, err = ParseJWKS([]byte("not json"))
	assert.ErrorIs(t, err, errs.ErrMalformed)
}

func (s StaticKeys) list() []*signing.Key {
	keys := make([]*signing.Key, 0, len(s))
	for _, k := range s {
		keys = append(keys, k)
	}
	return keys
}
