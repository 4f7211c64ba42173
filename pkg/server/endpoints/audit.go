package endpoints

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AuditEntryResponse struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	Severity     model.Severity  `json:"severity"`
	Timestamp    time.Time       `json:"timestamp"`
	Actor        string          `json:"actor"`
	Description  string          `json:"description"`
	WorkshopCode string          `json:"workshop_code,omitempty"`
	Detail       json.RawMessage `json:"detail,omitempty"`
}

// RegisterAuditEndpoints registers GET /audit
func RegisterAuditEndpoints(s *server.Server) {
	router := s.Router.PathPrefix("/audit").Subrouter()
	if s.Admin != nil {
		router.Use(s.Admin)
	}
	router.HandleFunc("", handleListAudit(s.Audit)).Methods("GET")
}

func handleListAudit(log server.AuditQuery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseAuditFilter(r)
		if err != nil {
			respondWithError(w, err)
			return
		}

		entries, err := log.Query(r.Context(), filter)
		if err != nil {
			respondWithError(w, err)
			return
		}

		resp := make([]AuditEntryResponse, 0, len(entries))
		for _, e := range entries {
			item := AuditEntryResponse{
				EventID:      e.EventID,
				EventType:    e.EventType,
				Severity:     e.Severity,
				Timestamp:    e.Timestamp,
				Actor:        e.Actor,
				Description:  e.Description,
				WorkshopCode: e.WorkshopCode,
			}
			if json.Valid([]byte(e.Detail)) {
				item.Detail = json.RawMessage(e.Detail)
			}
			resp = append(resp, item)
		}
		respondWithJSON(w, http.StatusOK, resp)
	}
}

func parseAuditFilter(r *http.Request) (store.AuditFilter, error) {
	const op = "endpoints.ListAudit"
	q := r.URL.Query()
	filter := store.AuditFilter{
		EventType:    q.Get("event_type"),
		WorkshopCode: q.Get("workshop_code"),
		Limit:        defaultAuditLimit,
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errs.New(errs.CodeInvalidRequest, op, "since must be an RFC3339 timestamp")
		}
		filter.Since = since
	}
	if v := q.Get("min_severity"); v != "" {
		sev, err := model.SeverityString(v)
		if err != nil {
			return filter, errs.New(errs.CodeInvalidRequest, op, "unknown severity %q", v)
		}
		filter.MinSeverity = sev
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxAuditLimit {
			return filter, errs.New(errs.CodeInvalidRequest, op, "limit must be between 1 and %d", maxAuditLimit)
		}
		filter.Limit = limit
	}
	return filter, nil
}
