package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"monkibox/internal/cart"
	"monkibox/internal/domain/products"
)

func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	engine, err := app.carts.Engine(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, engine.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

type AddCartItemPayload struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload AddCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.GetByID(r.Context(), payload.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	engine, err := app.carts.Engine(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	engine.AddItem(product.CartProduct(), payload.Quantity)

	if err := app.jsonResponse(w, http.StatusOK, engine.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateCartItemPayload struct {
	Quantity int `json:"quantity"`
}

func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	itemID := chi.URLParam(r, "itemID")

	var payload UpdateCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	engine, err := app.carts.Engine(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	// Zero and negative quantities remove the line; unknown ids are a no-op.
	engine.UpdateQuantity(itemID, payload.Quantity)

	if err := app.jsonResponse(w, http.StatusOK, engine.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	itemID := chi.URLParam(r, "itemID")

	engine, err := app.carts.Engine(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	engine.RemoveItem(itemID)

	if err := app.jsonResponse(w, http.StatusOK, engine.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	engine, err := app.carts.Engine(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	purchase, err := engine.Checkout(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrEmptyCart):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, purchase); err != nil {
		app.internalServerError(w, r, err)
	}
}
