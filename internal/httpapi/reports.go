package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/rbac"
)

func (a *API) mountReports(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Reports, rbac.Dashboard))
		r.Get("/reports/sales-statistics", a.handleSalesStatistics)
		r.Get("/reports/dashboard", a.handleDashboard)
	})
}

func (a *API) handleSalesStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.reports.SalesStatistics(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := a.reports.Dashboard(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
