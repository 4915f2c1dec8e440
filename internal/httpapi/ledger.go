package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/service"
)

func (a *API) mountSales(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Sales, rbac.Reports))
		r.Get("/sales", a.handleListSales)
		r.Get("/sales/{id}/items", a.handleListSaleItems)
	})
	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Sales))
		r.Post("/sales", a.handleCreateSale)
		r.Delete("/sales/{id}", a.handleDeleteSale)
	})
}

func (a *API) mountExpenses(r chi.Router) {
	r.With(requirePermission(rbac.Expenses, rbac.Reports)).Get("/expenses", a.handleListExpenses)
	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Expenses))
		r.Post("/expenses", a.handleCreateExpense)
		r.Delete("/expenses/{id}", a.handleDeleteExpense)
	})
}

func ledgerQuery(r *http.Request) service.LedgerQuery {
	q := r.URL.Query()
	return service.LedgerQuery{
		SessionID: q.Get("sessionId"),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
	}
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := a.service.ListSales(r.Context(), ledgerQuery(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleListSaleItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListSaleItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	receipt, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSale(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := a.service.ListExpenses(r.Context(), ledgerQuery(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteExpense(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}
