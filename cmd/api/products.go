package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"monkibox/internal/domain/products"
	"monkibox/internal/params"
)

type productListResponse struct {
	Products   []products.Product `json:"products"`
	Pagination params.Pagination  `json:"pagination"`
}

func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg := params.ParsePagination(q)
	search := q.Get("search")

	list, total, err := app.store.Products.List(r.Context(), search, pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	pg.ComputeMeta(total)

	resp := productListResponse{Products: list, Pagination: pg}
	if resp.Products == nil {
		resp.Products = []products.Product{}
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, product); err != nil {
		app.internalServerError(w, r, err)
	}
}
