package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
)

func (a *API) mountUsers(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Users))
		r.Get("/users", a.handleListUsers)
		r.Post("/users", a.handleCreateUser)
		r.Delete("/users/{id}", a.handleDeleteUser)

		r.Get("/roles", a.handleListRoles)
		r.Post("/roles", a.handleCreateRole)
		r.Put("/roles/{id}", a.handleUpdateRole)
		r.Delete("/roles/{id}", a.handleDeleteRole)

		r.Get("/permissions", a.handlePermissions)
	})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.service.CreateUser(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.service.ListRoles(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	role, err := a.service.CreateRole(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var patch domain.RolePatch
	if err := decodeJSON(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	role, err := a.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Permissions())
}
