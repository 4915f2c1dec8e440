package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
)

func (a *API) mountStock(r chi.Router) {
	r.With(requirePermission(rbac.Stock, rbac.Dashboard)).Get("/stock/alerts", a.handleStockAlerts)

	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Stock))
		r.Get("/stock", a.handleListStock)
		r.Post("/stock", a.handleUpsertStock)
		r.Post("/stock/adjust", a.handleAdjustStockByName)
		r.Post("/stock/deduct", a.handleDeductStock)
		r.Get("/stock/{id}", a.handleGetStock)
		r.Put("/stock/{id}", a.handleUpdateStock)
		r.Delete("/stock/{id}", a.handleDeleteStock)
		r.Post("/stock/{id}/adjust", a.handleAdjustStock)
	})
}

type stockDeltaRequest struct {
	Delta int `json:"delta"`
}

type stockDeductRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (a *API) handleListStock(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.ListStock(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleStockAlerts(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.ListLowStock(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleGetStock(w http.ResponseWriter, r *http.Request) {
	row, err := a.service.GetStock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleUpsertStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	row, err := a.service.UpsertStock(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (a *API) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var patch domain.StockPatch
	if err := decodeJSON(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	row, err := a.service.UpdateStock(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockDeltaRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.service.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleAdjustStockByName(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.service.AdjustStockByName(r.Context(), req.Name, req.Delta)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDeductStock(w http.ResponseWriter, r *http.Request) {
	var req stockDeductRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.service.DeductStockByName(r.Context(), req.Name, req.Quantity)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDeleteStock(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteStock(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}
