// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arboria/treeatlas/internal/platform/respond"
	"github.com/arboria/treeatlas/internal/platform/validate"
	"github.com/arboria/treeatlas/pkg/pagination"
)

// # HTTP Delivery

// Handler exposes the read-side of the security event log to operators.
//
// # Scope
//
// The write-side has no HTTP surface: events are only ever recorded by
// domain services, never by API clients.
type Handler struct {
	recorder Recorder
}

// NewHandler constructs a new [Handler] with its recorder dependency.
func NewHandler(recorder Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// Routes returns a [chi.Router] with the audit-log read endpoints.
//
// # Endpoints
//   - GET / : Paginated, filterable event listing (newest first).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list)
	return router
}

/*
List returns a page of security events.

GET /api/v1/admin/audit-logs?page=1&limit=20&user_id=...&event_type=...

Description: Reverse-chronological listing with optional filters on user
and event type.

Response:
  - 200: PaginatedEnvelope: Events plus pagination metadata
  - 400: ErrValidation: Unknown event_type filter
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	filter := ListFilter{
		UserID:    request.URL.Query().Get("user_id"),
		EventType: EventType(request.URL.Query().Get("event_type")),
	}

	// An unknown event type would silently match nothing; reject it instead.
	if filter.EventType != "" && !filter.EventType.Valid() {
		respond.Error(writer, request, validate.RequiredError("event_type", "Unknown event type"))
		return
	}

	entries, total, err := handler.recorder.List(request.Context(), filter, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}
