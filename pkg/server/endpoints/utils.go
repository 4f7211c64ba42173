package endpoints

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

// maxBodyBytes bounds request bodies on every JSON endpoint.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    errs.Code `json:"code"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

func respondWithError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		respondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": errorBody{Kind: errs.KindUnknown.String(), Message: "internal error"},
		})
		return
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	respondWithJSON(w, statusFor(e), map[string]interface{}{
		"error": errorBody{Code: e.Code, Kind: e.Kind().String(), Message: msg},
	})
}

func statusFor(e *errs.Error) int {
	switch e.Kind() {
	case errs.KindInput:
		return http.StatusBadRequest
	case errs.KindState:
		if e.Code == errs.CodeNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case errs.KindSecurity:
		if e.Code == errs.CodeFingerprintMismatch {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errs.KindInfrastructure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// decodeJSON reads a single JSON object from the request body. Unknown
// fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.New(errs.CodeInvalidRequest, op, "invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errs.New(errs.CodeInvalidRequest, op, "request body must contain a single JSON object")
	}
	return nil
}
