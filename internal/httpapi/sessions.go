package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
)

func (a *API) mountSessions(r chi.Router) {
	r.Get("/sessions/active", a.handleActiveSession)
	r.With(requirePermission(rbac.Sessions, rbac.Reports, rbac.Sales, rbac.Expenses)).Get("/sessions", a.handleListSessions)

	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Sessions))
		r.Post("/sessions", a.handleCreateSession)
		r.Post("/sessions/start-day", a.handleStartDay)
		r.Post("/sessions/end-day", a.handleEndDay)
		r.Post("/sessions/{id}/activate", a.handleActivateSession)
		r.Delete("/sessions/{id}", a.handleDeleteSession)
	})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.service.ListSessions(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleActiveSession answers JSON null when no session is open.
func (a *API) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetActiveSession(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.SessionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.service.CreateSession(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleStartDay(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.StartDay(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleEndDay(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.EndDay(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleActivateSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.ActivateSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}
