package httpapi

import (
	"net/http"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/accounts"
)

type updateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,pmpassword"`
	Name     *string `json:"name" validate:"omitempty,min=3"`
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(r)
	if !ok {
		a.fail(w, r, pmscanauth.ErrUnauthorized)
		return
	}
	profile, err := a.accounts.Profile(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(r)
	if !ok {
		a.fail(w, r, pmscanauth.ErrUnauthorized)
		return
	}
	var req updateUserRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	profile, err := a.accounts.Update(r.Context(), id, accounts.UpdateInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(r)
	if !ok {
		a.fail(w, r, pmscanauth.ErrUnauthorized)
		return
	}
	msg, err := a.accounts.Delete(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.cookies.clearRefresh(w)
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}
