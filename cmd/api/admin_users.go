package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"monkibox/internal/domain/users"
	"monkibox/internal/params"
)

type userListResponse struct {
	Users      []users.User      `json:"users"`
	Pagination params.Pagination `json:"pagination"`
}

func (app *application) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	pg := params.ParsePagination(r.URL.Query())

	list, total, err := app.store.Users.List(r.Context(), pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	pg.ComputeMeta(total)

	resp := userListResponse{Users: list, Pagination: pg}
	if resp.Users == nil {
		resp.Users = []users.User{}
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	admin := getUserFromContext(r)
	if admin.ID == userID {
		app.badRequestResponse(w, r, errors.New("cannot delete your own account"))
		return
	}

	if err := app.store.Users.Delete(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type SetUserRolePayload struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (app *application) setUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload SetUserRolePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Users.SetRole(r.Context(), userID, payload.Role); err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"role": payload.Role}); err != nil {
		app.internalServerError(w, r, err)
	}
}
