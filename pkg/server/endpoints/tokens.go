package endpoints

import (
	"net"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

// ValidateRequest is the body of POST /tokens/validate.
type ValidateRequest struct {
	Token               string `json:"token"`
	HardwareFingerprint string `json:"hardware_fingerprint"`
}

// RegisterTokenEndpoints registers token validation and key publication.
// Neither requires authentication.
func RegisterTokenEndpoints(s *server.Server) {
	s.Router.HandleFunc("/tokens/validate", handleValidateToken(s.Validator, s.Limiter)).Methods("POST")
	s.Router.HandleFunc("/.well-known/jwks.json", handleJWKS(s.Keys)).Methods("GET")
}

// handleValidateToken answers 200 for every decision, valid or not, so
// clients can tell a rejection from an outage. 503 means no decision was
// made.
func handleValidateToken(validator server.TokenValidator, limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			respondWithJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error": errorBody{Kind: "throttled", Message: "too many validation requests"},
			})
			return
		}

		var req ValidateRequest
		if err := decodeJSON(w, r, "endpoints.ValidateToken", &req); err != nil {
			respondWithError(w, err)
			return
		}

		result, err := validator.Validate(r.Context(), req.Token, req.HardwareFingerprint, token.WithClientIP(clientIP(r)))
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleJWKS(keys server.PublicKeySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pub, err := keys.PublicKeys(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		body, err := token.JWKS(pub)
		if err != nil {
			respondWithError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/jwk-set+json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// clientIP returns the host part of RemoteAddr. handlers.ProxyHeaders has
// already applied X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
