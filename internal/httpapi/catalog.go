package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
)

// mountCatalog registers categories, products and tables. Every signed-in
// role reads the menu; only products managers change it.
func (a *API) mountCatalog(r chi.Router) {
	r.Get("/categories", a.handleListCategories)
	r.Get("/categories/{id}", a.handleGetCategory)
	r.Get("/products", a.handleListProducts)
	r.Get("/products/{id}", a.handleGetProduct)
	r.Get("/tables", a.handleListTables)
	r.Get("/tables/{id}", a.handleGetTable)

	r.Group(func(r chi.Router) {
		r.Use(requirePermission(rbac.Products))
		r.Post("/categories", a.handleCreateCategory)
		r.Put("/categories/{id}", a.handleUpdateCategory)
		r.Delete("/categories/{id}", a.handleDeleteCategory)

		r.Post("/products", a.handleCreateProduct)
		r.Put("/products/{id}", a.handleUpdateProduct)
		r.Delete("/products/{id}", a.handleDeleteProduct)

		r.Post("/tables", a.handleCreateTable)
		r.Put("/tables/{id}", a.handleUpdateTable)
		r.Delete("/tables/{id}", a.handleDeleteTable)
	})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := a.service.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	category, err := a.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}

func (a *API) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := a.service.ListTables(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (a *API) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := a.service.GetTable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (a *API) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req domain.TableCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	table, err := a.service.CreateTable(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, table)
}

func (a *API) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	var patch domain.TablePatch
	if err := decodeJSON(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	table, err := a.service.UpdateTable(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (a *API) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteTable(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeDeleted(w)
}
