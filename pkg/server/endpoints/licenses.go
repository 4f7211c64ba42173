package endpoints

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
)

// LicenseResponse is the wire form of a license record. Token material is
// never included.
type LicenseResponse struct {
	ID                    string             `json:"id"`
	WorkshopCode          string             `json:"workshop_code"`
	BusinessName          string             `json:"business_name"`
	BusinessNameLocalized string             `json:"business_name_localized,omitempty"`
	ContactEmail          string             `json:"contact_email,omitempty"`
	LicenseType           string             `json:"license_type"`
	Status                string             `json:"status"`
	IssuedAt              time.Time          `json:"issued_at"`
	ExpiresAt             time.Time          `json:"expires_at"`
	FeaturesEnabled       []string           `json:"features_enabled"`
	HardwareFingerprint   string             `json:"hardware_fingerprint,omitempty"`
	BoundAt               *time.Time         `json:"bound_at,omitempty"`
	CurrentJTI            string             `json:"current_jti,omitempty"`
	RenewalHistory        []RenewalEventView `json:"renewal_history"`
	RevokedAt             *time.Time         `json:"revoked_at,omitempty"`
	RevokedBy             string             `json:"revoked_by,omitempty"`
	RevocationReason      string             `json:"revocation_reason,omitempty"`
	Version               int64              `json:"version"`
}

type RenewalEventView struct {
	RenewedAt      time.Time `json:"renewed_at"`
	RenewedBy      string    `json:"renewed_by"`
	PreviousExpiry time.Time `json:"previous_expiry"`
	NewExpiry      time.Time `json:"new_expiry"`
	DurationDays   int       `json:"duration_days"`
	Reactivation   bool      `json:"reactivation,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

func NewLicenseResponse(l *model.License) LicenseResponse {
	resp := LicenseResponse{
		ID:                    l.ID,
		WorkshopCode:          l.WorkshopCode,
		BusinessName:          l.BusinessName,
		BusinessNameLocalized: l.BusinessNameLocalized,
		ContactEmail:          l.ContactEmail,
		LicenseType:           l.LicenseType.String(),
		Status:                l.Status.String(),
		IssuedAt:              l.IssuedAt,
		ExpiresAt:             l.ExpiresAt,
		FeaturesEnabled:       append([]string{}, l.FeaturesEnabled...),
		HardwareFingerprint:   l.HardwareFingerprint,
		BoundAt:               l.BoundAt,
		CurrentJTI:            l.CurrentJTI,
		RenewalHistory:        make([]RenewalEventView, 0, len(l.RenewalHistory)),
		RevokedAt:             l.RevokedAt,
		RevokedBy:             l.RevokedBy,
		RevocationReason:      l.RevocationReason,
		Version:               l.Version,
	}
	for _, ev := range l.RenewalHistory {
		resp.RenewalHistory = append(resp.RenewalHistory, RenewalEventView{
			RenewedAt:      ev.RenewedAt,
			RenewedBy:      ev.RenewedBy,
			PreviousExpiry: ev.PreviousExpiry,
			NewExpiry:      ev.NewExpiry,
			DurationDays:   ev.DurationDays,
			Reactivation:   ev.Reactivation,
			Reason:         ev.Reason,
		})
	}
	return resp
}

// RegisterLicenseEndpoints registers the license management API endpoints
func RegisterLicenseEndpoints(s *server.Server) {
	licenses := s.Licenses

	router := s.Router.PathPrefix("/licenses").Subrouter()
	if s.Admin != nil {
		router.Use(s.Admin)
	}

	router.HandleFunc("", handleIssueLicense(licenses)).Methods("POST")
	router.HandleFunc("/expiration-check", handleExpirationCheck(licenses)).Methods("POST")
	router.HandleFunc("/{id}", handleGetLicense(licenses)).Methods("GET")
	router.HandleFunc("/{id}/renew", handleRenewLicense(licenses, false)).Methods("POST")
	router.HandleFunc("/{id}/reactivate", handleRenewLicense(licenses, true)).Methods("POST")
	router.HandleFunc("/{id}/revoke", handleRevokeLicense(licenses)).Methods("POST")

	dashboard := s.Router.PathPrefix("/dashboard").Subrouter()
	if s.Admin != nil {
		dashboard.Use(s.Admin)
	}
	dashboard.HandleFunc("", handleDashboard(licenses)).Methods("GET")
}

func handleIssueLicense(licenses server.LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req license.IssueRequest
		if err := decodeJSON(w, r, "endpoints.IssueLicense", &req); err != nil {
			respondWithError(w, err)
			return
		}

		result, err := licenses.Issue(r.Context(), req)
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, result)
	}
}

func handleGetLicense(licenses server.LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := licenses.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, NewLicenseResponse(l))
	}
}

func handleRenewLicense(licenses server.LicenseService, reactivate bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req license.RenewRequest
		if err := decodeJSON(w, r, "endpoints.RenewLicense", &req); err != nil {
			respondWithError(w, err)
			return
		}

		id := mux.Vars(r)["id"]
		var (
			result *license.RenewalResult
			err    error
		)
		if reactivate {
			result, err = licenses.Reactivate(r.Context(), id, req)
		} else {
			result, err = licenses.Renew(r.Context(), id, req)
		}
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleRevokeLicense(licenses server.LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req license.RevokeRequest
		if err := decodeJSON(w, r, "endpoints.RevokeLicense", &req); err != nil {
			respondWithError(w, err)
			return
		}

		result, err := licenses.Revoke(r.Context(), mux.Vars(r)["id"], req)
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleExpirationCheck(licenses server.LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := licenses.CheckExpiration(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleDashboard(licenses server.LicenseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dashboard, err := licenses.Dashboard(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, dashboard)
	}
}
