package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
)

// mountOrders registers table orders and the kitchen view. The kitchen role
// reads orders and marks them ready but never edits lines or closes bills.
func (a *API) mountOrders(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Orders, rbac.Kitchen))
		r.Get("/kitchen/active-orders", a.handleKitchenOrders)
		r.Get("/orders/{id}", a.handleGetOrder)
		r.Get("/orders/{id}/items", a.handleListOrderItems)
		r.Put("/orders/{id}", a.handleUpdateOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Orders))
		r.Get("/orders", a.handleListOrders)
		r.Post("/orders", a.handleCreateOrder)
		r.Delete("/orders/{id}", a.handleCancelOrder)
		r.Post("/orders/{id}/items", a.handleAddOrderItem)
		r.Post("/orders/{id}/close-bill", a.handleCloseBill)
		r.Put("/order-items/{id}", a.handleUpdateOrderItem)
		r.Delete("/order-items/{id}", a.handleRemoveOrderItem)
		r.Get("/tables/{id}/active-order", a.handleActiveOrderForTable)
	})
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.service.ListOrders(r.Context(), r.URL.Query().Get("tableId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	order, err := a.service.CreateOrder(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var patch domain.OrderPatch
	if err := decodeJSON(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	order, err := a.service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.service.CancelOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handleListOrderItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListOrderItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleAddOrderItem(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderItemCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	item, err := a.service.AddOrderItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleUpdateOrderItem(w http.ResponseWriter, r *http.Request) {
	var patch domain.OrderItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	item, err := a.service.UpdateOrderItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleRemoveOrderItem(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveOrderItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handleCloseBill(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.CloseBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleActiveOrderForTable answers JSON null for a free table.
func (a *API) handleActiveOrderForTable(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetActiveOrderForTable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleKitchenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.service.KitchenOrders(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
