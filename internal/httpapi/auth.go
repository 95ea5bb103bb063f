package httpapi

import (
	"net/http"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/accounts"
)

const logoutMessage = "Logged out successfully"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pmpassword"`
	Name     string `json:"name" validate:"required,min=3"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	ResetToken string `json:"resetToken" validate:"required"`
	Password   string `json:"password" validate:"required,pmpassword"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.engine.Login(clientContext(r), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.cookies.setRefresh(w, res.RefreshToken)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: res.AccessToken})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	profile, err := a.accounts.Register(r.Context(), accounts.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshToken(r)
	if token == "" {
		a.fail(w, r, pmscanauth.ErrMissingRefreshToken)
		return
	}

	res, err := a.engine.Refresh(clientContext(r), token)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if res.RefreshToken != "" {
		a.cookies.setRefresh(w, res.RefreshToken)
	}
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: res.AccessToken})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	token := refreshToken(r)
	if token == "" {
		a.fail(w, r, pmscanauth.ErrMissingRefreshToken)
		return
	}

	if err := a.engine.Logout(clientContext(r), token); err != nil {
		a.fail(w, r, err)
		return
	}

	a.cookies.clearRefresh(w)
	writeJSON(w, http.StatusOK, messageBody{Message: logoutMessage})
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.engine.ForgotPassword(clientContext(r), req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: res.Message})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.engine.ResetPassword(clientContext(r), req.ResetToken, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: res.Message})
}
