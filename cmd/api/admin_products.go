package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"monkibox/internal/domain/products"
)

type CreateProductPayload struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Stock       int             `json:"stock" validate:"min=0"`
	Description string          `json:"description" validate:"max=2000"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool           `json:"is_active"`
}

func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.Price.IsNegative() {
		app.badRequestResponse(w, r, errors.New("price must not be negative"))
		return
	}

	product := &products.Product{
		Name:        payload.Name,
		Price:       payload.Price,
		Stock:       payload.Stock,
		Description: payload.Description,
		ImageURL:    payload.ImageURL,
		IsActive:    true,
	}
	if payload.IsActive != nil {
		product.IsActive = *payload.IsActive
	}

	if err := app.store.Products.Create(r.Context(), product); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, product); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateProductPayload struct {
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,min=0"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool            `json:"is_active"`
}

func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	updates := map[string]interface{}{}
	if payload.Name != nil {
		updates["name"] = *payload.Name
	}
	if payload.Price != nil {
		if payload.Price.IsNegative() {
			app.badRequestResponse(w, r, errors.New("price must not be negative"))
			return
		}
		updates["price"] = *payload.Price
	}
	if payload.Stock != nil {
		updates["stock"] = *payload.Stock
	}
	if payload.Description != nil {
		updates["description"] = *payload.Description
	}
	if payload.ImageURL != nil {
		updates["image_url"] = *payload.ImageURL
	}
	if payload.IsActive != nil {
		updates["is_active"] = *payload.IsActive
	}

	if len(updates) == 0 {
		app.badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	if err := app.store.Products.Update(r.Context(), productID, updates); err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	product, err := app.store.Products.GetByID(r.Context(), productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, product); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := app.store.Products.Delete(r.Context(), productID); err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// Orphaned images only waste storage; the product itself is gone.
	if product.ImageURL != "" {
		if err := app.deletePhotoFromCloudinary(product.ImageURL); err != nil {
			app.logger.Errorw("failed to delete product image", "product_id", productID, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

const maxImageSize = 5 << 20 // 5MB

func (app *application) uploadProductImageHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("image file is required"))
		return
	}
	defer file.Close()

	if header.Size > maxImageSize {
		app.badRequestResponse(w, r, errors.New("image exceeds the 5MB limit"))
		return
	}

	if err := checkImageMIME(file); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	url, err := app.uploadProductImage(file, productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Products.SetImageURL(r.Context(), productID, url); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if product.ImageURL != "" {
		if err := app.deletePhotoFromCloudinary(product.ImageURL); err != nil {
			app.logger.Errorw("failed to delete previous product image", "product_id", productID, "error", err)
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"image_url": url}); err != nil {
		app.internalServerError(w, r, err)
	}
}
