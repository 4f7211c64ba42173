package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/app"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/notify"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/offline"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

const adminToken = "integration-admin-token"

// clock is a settable time source shared by the server and the offline
// client of one scenario. Every reading moves it forward by a microsecond so
// audit entries list in the order they were written.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Microsecond)
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StepsContext holds state shared between step definitions
type StepsContext struct {
	backend Backend
	clock   *clock
	app     *app.App
	server  *httptest.Server
	client  *http.Client

	response     *http.Response
	responseBody []byte

	licenseID string
	token     string
	jti       string
	result    token.Result

	offline    *offline.Validator
	session    *offline.Session
	offlineErr error
}

// NewStepsContext creates a new steps context
func NewStepsContext(backend Backend) *StepsContext {
	return &StepsContext{
		backend: backend,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Before(s.start)
	sc.After(s.stop)

	// Background steps
	sc.Step(`^a licensing server with an active "([^"]*)" signing key$`, s.aServerWithActiveKey)

	// License steps
	sc.Step(`^I issue a "([^"]*)" license for workshop "([^"]*)"$`, s.iIssueLicense)
	sc.Step(`^I issue a "([^"]*)" license for workshop "([^"]*)" bound to "([^"]*)"$`, s.iIssueBoundLicense)
	sc.Step(`^I issue a "([^"]*)" license for workshop "([^"]*)" without authorization$`, s.iIssueWithoutAuthorization)
	sc.Step(`^I renew the license for (\d+) days$`, s.iRenewTheLicense)
	sc.Step(`^I reactivate the license for (\d+) days$`, s.iReactivateTheLicense)
	sc.Step(`^I revoke the license because "([^"]*)"$`, s.iRevokeTheLicense)
	sc.Step(`^I run the expiration check$`, s.iRunTheExpirationCheck)
	sc.Step(`^the license status should be "([^"]*)"$`, s.theLicenseStatusShouldBe)
	sc.Step(`^the license should have (\d+) renewal events?$`, s.theLicenseShouldHaveRenewals)
	sc.Step(`^the dashboard should count (\d+) "([^"]*)" licenses?$`, s.theDashboardShouldCount)

	// Token steps
	sc.Step(`^I validate the token with fingerprint "([^"]*)"$`, s.iValidateTheToken)
	sc.Step(`^I validate the token "([^"]*)"$`, s.iValidateRawToken)
	sc.Step(`^the token should be valid$`, s.theTokenShouldBeValid)
	sc.Step(`^the token should be rejected with "([^"]*)"$`, s.theTokenShouldBeRejectedWith)
	sc.Step(`^the token should grant feature "([^"]*)"$`, s.theTokenShouldGrantFeature)

	// Key steps
	sc.Step(`^I rotate the signing key$`, s.iRotateTheSigningKey)
	sc.Step(`^the JWKS should publish (\d+) keys?$`, s.theJWKSShouldPublish)

	// Offline steps
	sc.Step(`^I start an offline session with fingerprint "([^"]*)"$`, s.iStartAnOfflineSession)
	sc.Step(`^I check the offline session$`, s.iCheckTheOfflineSession)
	sc.Step(`^the offline check should succeed$`, s.theOfflineCheckShouldSucceed)
	sc.Step(`^the offline check should fail with "([^"]*)"$`, s.theOfflineCheckShouldFailWith)

	// Common steps
	sc.Step(`^(\d+) (days?|hours?) pass(?:es)?$`, s.timePasses)
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response error code should be "([^"]*)"$`, s.theResponseErrorCodeShouldBe)
	sc.Step(`^the audit trail should contain an? "([^"]*)" event$`, s.theAuditTrailShouldContain)
}

func (s *StepsContext) start(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	st, err := s.backend.NewStore(ctx)
	if err != nil {
		return ctx, err
	}

	s.clock = &clock{now: time.Now().UTC().Truncate(time.Second)}
	cfg := config.Default()
	cfg.StoreBackend = config.StoreBackendMemory

	s.app, err = app.New(cfg, st,
		app.WithLogger(zap.NewNop()),
		app.WithClock(s.clock.Now),
		app.WithAuditWriter(io.Discard),
		app.WithSink(notify.NewLogSink(zap.NewNop())))
	if err != nil {
		return ctx, err
	}

	srv := s.app.Server("127.0.0.1", "0", adminToken)
	s.server = httptest.NewServer(srv.Router)
	return ctx, nil
}

func (s *StepsContext) stop(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
	if s.server != nil {
		s.server.Close()
	}
	if s.app != nil {
		_ = s.app.Close()
	}
	return ctx, err
}

func (s *StepsContext) do(method, path string, body interface{}, admin bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}

	s.response, err = s.client.Do(req)
	if err != nil {
		return err
	}
	s.responseBody, err = io.ReadAll(s.response.Body)
	_ = s.response.Body.Close()
	return err
}

func (s *StepsContext) expectStatus(code int) error {
	if s.response.StatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, s.response.StatusCode, s.responseBody)
	}
	return nil
}

// Background steps

func (s *StepsContext) aServerWithActiveKey(alg string) error {
	algorithm, err := signing.ParseAlgorithm(alg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	key, err := s.app.Keys.Generate(ctx, algorithm, signing.MinKeySize, "integration")
	if err != nil {
		return err
	}
	return s.app.Keys.Activate(ctx, key.Fingerprint(), "integration")
}

// License steps

func (s *StepsContext) issue(licenseType, workshop, fingerprint string, admin bool) error {
	body := map[string]interface{}{
		"workshop_code":        workshop,
		"business_name":        "Workshop " + workshop,
		"contact_email":        "owner@example.com",
		"license_type":         licenseType,
		"hardware_fingerprint": fingerprint,
		"actor":                "integration",
	}
	if err := s.do(http.MethodPost, "/licenses", body, admin); err != nil {
		return err
	}
	if s.response.StatusCode != http.StatusCreated {
		return nil
	}

	var res struct {
		LicenseID string `json:"license_id"`
		Token     string `json:"token"`
		JTI       string `json:"jti"`
	}
	if err := json.Unmarshal(s.responseBody, &res); err != nil {
		return err
	}
	s.licenseID, s.token, s.jti = res.LicenseID, res.Token, res.JTI
	return nil
}

func (s *StepsContext) iIssueLicense(licenseType, workshop string) error {
	if err := s.issue(licenseType, workshop, "", true); err != nil {
		return err
	}
	return s.expectStatus(http.StatusCreated)
}

func (s *StepsContext) iIssueBoundLicense(licenseType, workshop, fingerprint string) error {
	if err := s.issue(licenseType, workshop, fingerprint, true); err != nil {
		return err
	}
	return s.expectStatus(http.StatusCreated)
}

func (s *StepsContext) iIssueWithoutAuthorization(licenseType, workshop string) error {
	return s.issue(licenseType, workshop, "", false)
}

func (s *StepsContext) extend(action string, days int) error {
	body := map[string]interface{}{"duration_days": days, "actor": "integration"}
	if err := s.do(http.MethodPost, "/licenses/"+url.PathEscape(s.licenseID)+"/"+action, body, true); err != nil {
		return err
	}
	if s.response.StatusCode != http.StatusOK {
		return nil
	}
	var res struct {
		Token string `json:"token"`
		JTI   string `json:"jti"`
	}
	if err := json.Unmarshal(s.responseBody, &res); err != nil {
		return err
	}
	s.token, s.jti = res.Token, res.JTI
	return nil
}

func (s *StepsContext) iRenewTheLicense(days int) error {
	return s.extend("renew", days)
}

func (s *StepsContext) iReactivateTheLicense(days int) error {
	return s.extend("reactivate", days)
}

func (s *StepsContext) iRevokeTheLicense(reason string) error {
	body := map[string]interface{}{"reason": reason, "actor": "integration"}
	return s.do(http.MethodPost, "/licenses/"+url.PathEscape(s.licenseID)+"/revoke", body, true)
}

func (s *StepsContext) iRunTheExpirationCheck() error {
	if err := s.do(http.MethodPost, "/licenses/expiration-check", nil, true); err != nil {
		return err
	}
	return s.expectStatus(http.StatusOK)
}

func (s *StepsContext) currentLicense() (map[string]interface{}, error) {
	if err := s.do(http.MethodGet, "/licenses/"+url.PathEscape(s.licenseID), nil, true); err != nil {
		return nil, err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return nil, err
	}
	var l map[string]interface{}
	return l, json.Unmarshal(s.responseBody, &l)
}

func (s *StepsContext) theLicenseStatusShouldBe(status string) error {
	l, err := s.currentLicense()
	if err != nil {
		return err
	}
	if l["status"] != status {
		return fmt.Errorf("expected status %q, got %v", status, l["status"])
	}
	return nil
}

func (s *StepsContext) theLicenseShouldHaveRenewals(n int) error {
	l, err := s.currentLicense()
	if err != nil {
		return err
	}
	history, _ := l["renewal_history"].([]interface{})
	if len(history) != n {
		return fmt.Errorf("expected %d renewal events, got %d", n, len(history))
	}
	return nil
}

func (s *StepsContext) theDashboardShouldCount(n int, status string) error {
	if err := s.do(http.MethodGet, "/dashboard", nil, true); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	var d struct {
		LicenseOverview struct {
			ByStatus map[string]int64 `json:"by_status"`
		} `json:"license_overview"`
	}
	if err := json.Unmarshal(s.responseBody, &d); err != nil {
		return err
	}
	if got := d.LicenseOverview.ByStatus[status]; got != int64(n) {
		return fmt.Errorf("expected %d %s licenses, got %d in %s", n, status, got, s.responseBody)
	}
	return nil
}

// Token steps

func (s *StepsContext) validate(tok, fingerprint string) error {
	body := map[string]string{"token": tok, "hardware_fingerprint": fingerprint}
	if err := s.do(http.MethodPost, "/tokens/validate", body, false); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	s.result = token.Result{}
	return json.Unmarshal(s.responseBody, &s.result)
}

func (s *StepsContext) iValidateTheToken(fingerprint string) error {
	return s.validate(s.token, fingerprint)
}

func (s *StepsContext) iValidateRawToken(tok string) error {
	return s.validate(tok, "")
}

func (s *StepsContext) theTokenShouldBeValid() error {
	if !s.result.Valid {
		return fmt.Errorf("expected a valid token, got %s: %s", s.result.Code, s.result.Message)
	}
	return nil
}

func (s *StepsContext) theTokenShouldBeRejectedWith(code string) error {
	if s.result.Valid {
		return fmt.Errorf("expected rejection with %s, token was valid", code)
	}
	if string(s.result.Code) != code {
		return fmt.Errorf("expected code %s, got %s (%s)", code, s.result.Code, s.result.Message)
	}
	return nil
}

func (s *StepsContext) theTokenShouldGrantFeature(feature string) error {
	if s.result.Claims == nil {
		return fmt.Errorf("no claims in result")
	}
	for _, f := range s.result.Claims.Features {
		if f == feature {
			return nil
		}
	}
	return fmt.Errorf("feature %q not in %v", feature, s.result.Claims.Features)
}

// Key steps

func (s *StepsContext) iRotateTheSigningKey() error {
	active, err := s.app.Keys.Active(context.Background(), s.app.Config.Algorithm())
	if err != nil {
		return err
	}
	_, err = s.app.Keys.Rotate(context.Background(), active.Algorithm(), signing.MinKeySize, "integration")
	return err
}

func (s *StepsContext) theJWKSShouldPublish(n int) error {
	if err := s.do(http.MethodGet, "/.well-known/jwks.json", nil, false); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	keys, err := token.ParseJWKS(s.responseBody)
	if err != nil {
		return err
	}
	if len(keys) != n {
		return fmt.Errorf("expected %d published keys, got %d", n, len(keys))
	}
	return nil
}

// Offline steps

func (s *StepsContext) iStartAnOfflineSession(fingerprint string) error {
	remote := offline.NewRemoteValidator(s.server.URL, s.client)
	keys, err := remote.FetchKeys(context.Background())
	if err != nil {
		return err
	}
	s.offline = offline.NewValidator(remote,
		offline.WithLocalKeys(keys),
		offline.WithAudit(s.app.Audit),
		offline.WithClock(s.clock.Now))
	s.session, err = s.offline.Start(context.Background(), s.token, fingerprint)
	return err
}

func (s *StepsContext) iCheckTheOfflineSession() error {
	if s.session == nil {
		return fmt.Errorf("no offline session started")
	}
	s.offlineErr = s.offline.ValidateOffline(context.Background(), s.session)
	return nil
}

func (s *StepsContext) theOfflineCheckShouldSucceed() error {
	return s.offlineErr
}

func (s *StepsContext) theOfflineCheckShouldFailWith(code string) error {
	if s.offlineErr == nil {
		return fmt.Errorf("expected offline check to fail with %s", code)
	}
	if got := string(errs.CodeOf(s.offlineErr)); got != code {
		return fmt.Errorf("expected %s, got %s (%v)", code, got, s.offlineErr)
	}
	return nil
}

// Common steps

func (s *StepsContext) timePasses(n int, unit string) error {
	d := time.Duration(n) * time.Hour
	if unit == "day" || unit == "days" {
		d *= 24
	}
	s.clock.Advance(d)
	return nil
}

func (s *StepsContext) theResponseStatusShouldBe(code int) error {
	return s.expectStatus(code)
}

func (s *StepsContext) theResponseErrorCodeShouldBe(code string) error {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(s.responseBody, &body); err != nil {
		return fmt.Errorf("response is not an error body: %s", s.responseBody)
	}
	if body.Error.Code != code {
		return fmt.Errorf("expected error code %s, got %s", code, body.Error.Code)
	}
	return nil
}

func (s *StepsContext) theAuditTrailShouldContain(eventType string) error {
	s.app.Audit.Wait()
	if err := s.do(http.MethodGet, "/audit?event_type="+url.QueryEscape(eventType), nil, true); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no %s audit entries", eventType)
	}
	return nil
}
