package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

// RemoteValidator asks a licensing server to validate tokens.
type RemoteValidator struct {
	baseURL string
	client  *http.Client
}

// NewRemoteValidator targets the server at baseURL. A nil client uses one
// with a 10 second timeout.
func NewRemoteValidator(baseURL string, client *http.Client) *RemoteValidator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteValidator{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type validateRequest struct {
	Token               string `json:"token"`
	HardwareFingerprint string `json:"hardware_fingerprint"`
}

// Validate returns the server's decision. Anything other than a decision,
// including an unreachable server, is StorageUnavailable.
func (r *RemoteValidator) Validate(ctx context.Context, tok, fingerprint string) (*token.Result, error) {
	const op = "offline.RemoteValidator.Validate"
	body, err := json.Marshal(validateRequest{Token: tok, HardwareFingerprint: fingerprint})
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidRequest, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/tokens/validate", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidRequest, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errs.Storage(op, fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(msg))))
	}

	var res token.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errs.Storage(op, err)
	}
	if res.Valid && res.Claims == nil {
		return nil, errs.Storage(op, fmt.Errorf("server returned a valid result without claims"))
	}
	return &res, nil
}

// FetchKeys downloads the server's public keys for local verification.
func (r *RemoteValidator) FetchKeys(ctx context.Context) (token.StaticKeys, error) {
	const op = "offline.RemoteValidator.FetchKeys"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/.well-known/jwks.json", nil)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidRequest, op, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Storage(op, fmt.Errorf("server answered %s", resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	return token.ParseJWKS(data)
}
