package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/metrics"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server/middleware"
)

const testAdminToken = "admin-token"

type testServer struct {
	*server.Server
	licenses  *MockLicenseService
	validator *MockValidator
	audit     *MockAuditQuery
	keys      *MockKeys
	health    *MockHealthStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		Server:    server.NewServer("127.0.0.1", "0"),
		licenses:  &MockLicenseService{},
		validator: &MockValidator{},
		audit:     &MockAuditQuery{},
		keys:      &MockKeys{},
		health:    &MockHealthStore{},
	}
	ts.Licenses = ts.licenses
	ts.Validator = ts.validator
	ts.Audit = ts.audit
	ts.Keys = ts.keys
	ts.Health = ts.health
	ts.Metrics = metrics.New()
	ts.Admin = middleware.NewAdminAuthenticator(testAdminToken).Middleware
	RegisterAll(ts.Server)

	t.Cleanup(func() {
		ts.licenses.AssertExpectations(t)
		ts.validator.AssertExpectations(t)
		ts.audit.AssertExpectations(t)
		ts.keys.AssertExpectations(t)
		ts.health.AssertExpectations(t)
	})
	return ts
}

// do sends a request through the router. Admin requests carry the bearer
// token.
func (ts *testServer) do(t *testing.T, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

