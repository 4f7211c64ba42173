package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/notify"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

const adminToken = "test-admin"

func newApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	cfg := config.Default()
	cfg.StoreBackend = config.StoreBackendMemory
	opts = append([]Option{WithAuditWriter(io.Discard)}, opts...)

	a, err := New(cfg, memory.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Keys.Rotate(t.Context(), signing.RS256, signing.MinKeySize, "admin")
	require.NoError(t, err)
	return a
}

func post(t *testing.T, h http.Handler, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest("POST", path, &buf)
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerIssueValidateRevoke(t *testing.T) {
	a := newApp(t)
	router := a.Server("127.0.0.1", "0", adminToken).Router

	rec := post(t, router, "/licenses", license.IssueRequest{
		WorkshopCode:        "WS-100",
		BusinessName:        "Harbor Motors",
		ContactEmail:        "it@harbor.example",
		LicenseType:         "Standard",
		HardwareFingerprint: "fp-100",
		Actor:               "admin@vendor",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued license.IssuanceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

	validate := func() token.Result {
		rec := post(t, router, "/tokens/validate", map[string]string{
			"token":                issued.Token,
			"hardware_fingerprint": "fp-100",
		}, false)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res token.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		return res
	}
	assert.True(t, validate().Valid)

	rec = post(t, router, "/licenses/"+issued.LicenseID+"/revoke", license.RevokeRequest{
		Reason: "contract ended",
		Actor:  "admin@vendor",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := validate()
	assert.False(t, res.Valid)
	assert.Equal(t, errs.CodeRevoked, res.Code)
}

func TestApplyUpdatesReloadableSettings(t *testing.T) {
	a := newApp(t)

	next := config.Default()
	next.TokenLeewaySeconds = 5
	next.ExpiryWarningDays = 7
	next.AlertRecipients = []string{"sec@vendor.example"}
	a.Apply(next)

	assert.Equal(t, 5*time.Second, a.Validator.Leeway())
	assert.Equal(t, 7*24*time.Hour, a.Licenses.ExpiryWarning())
}

func TestSinkFromConfig(t *testing.T) {
	cfg := config.Default()
	assert.Len(t, Sink(cfg, nopLogger()), 1)

	cfg.AlertWebhookURL = "https://hooks.example/licensing"
	cfg.SMTPAddress = "mail.example:25"
	cfg.SMTPFrom = "licensing@vendor.example"
	sinks, ok := Sink(cfg, nopLogger()).(notify.MultiSink)
	require.True(t, ok)
	assert.Len(t, sinks, 3)
}

func TestRevocationsSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a := newApp(t, WithRedis(client))
	issued, err := a.Licenses.Issue(t.Context(), license.IssueRequest{
		WorkshopCode: "WS-200",
		BusinessName: "Delta Auto",
		ContactEmail: "it@delta.example",
		LicenseType:  "Trial",
		Actor:        "admin@vendor",
	})
	require.NoError(t, err)

	_, err = a.Licenses.Revoke(t.Context(), issued.LicenseID, license.RevokeRequest{
		Reason: "fraud",
		Actor:  "admin@vendor",
	})
	require.NoError(t, err)

	keys := mr.Keys()
	assert.Contains(t, keys, "licensing:revoked:"+issued.JTI)
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
