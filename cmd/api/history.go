package main

import (
	"net/http"

	"monkibox/internal/cart"
	"monkibox/internal/params"
)

type purchaseListResponse struct {
	Purchases  []cart.Purchase   `json:"purchases"`
	Pagination params.Pagination `json:"pagination"`
}

func (app *application) listPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	pg := params.ParsePagination(r.URL.Query())

	list, total, err := app.store.Purchases.ListByUser(r.Context(), user.ID, pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	pg.ComputeMeta(total)

	resp := purchaseListResponse{Purchases: list, Pagination: pg}
	if resp.Purchases == nil {
		resp.Purchases = []cart.Purchase{}
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}
