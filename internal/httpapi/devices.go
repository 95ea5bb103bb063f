package httpapi

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/fleet"
	"github.com/MrEthical07/pmscanauth/internal/repository"
)

type createDeviceRequest struct {
	Name       string `json:"name"`
	DeviceID   string `json:"deviceId" validate:"required,pmscanmac"`
	DeviceName string `json:"deviceName" validate:"required,pmscanname"`
	Display    string `json:"display" validate:"required,base64"`
}

type updateDeviceRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1"`
	DeviceName *string `json:"deviceName" validate:"omitempty,pmscanname"`
	Display    *string `json:"display" validate:"omitempty,base64"`
}

// deviceView is the JSON form of a device. Display is base64.
type deviceView struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Name       string    `json:"name"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	Display    []byte    `json:"display"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toDeviceView(d repository.Device) deviceView {
	return deviceView{
		ID:         d.ID,
		UserID:     d.UserID,
		Name:       d.Name,
		DeviceID:   d.DeviceID,
		DeviceName: d.DeviceName,
		Display:    d.Display,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func (a *API) createDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(r)
	if !ok {
		a.fail(w, r, pmscanauth.ErrUnauthorized)
		return
	}
	var req createDeviceRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	display, err := base64.StdEncoding.DecodeString(req.Display)
	if err != nil {
		a.fail(w, r, badRequest("display must be base64 encoded"))
		return
	}

	d, err := a.fleet.CreateDevice(r.Context(), userID, fleet.NewDevice{
		Name:       req.Name,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Display:    display,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeviceView(d))
}

func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(r)
	if !ok {
		a.fail(w, r, pmscanauth.ErrUnauthorized)
		return
	}
	devices, err := a.fleet.ListDevices(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceView(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getDevice(w http.ResponseWriter, r *http.Request) {
	userID, deviceID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.fleet.GetDevice(r.Context(), userID, deviceID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceView(d))
}

func (a *API) updateDevice(w http.ResponseWriter, r *http.Request) {
	userID, deviceID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req updateDeviceRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	changes := fleet.DeviceChanges{Name: req.Name, DeviceName: req.DeviceName}
	if req.Display != nil {
		display, err := base64.StdEncoding.DecodeString(*req.Display)
		if err != nil {
			a.fail(w, r, badRequest("display must be base64 encoded"))
			return
		}
		changes.Display = display
	}

	d, err := a.fleet.UpdateDevice(r.Context(), userID, deviceID, changes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceView(d))
}

func (a *API) deleteDevice(w http.ResponseWriter, r *http.Request) {
	userID, deviceID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	msg, err := a.fleet.DeleteDevice(r.Context(), userID, deviceID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

// ownedPath returns the subject id and the {id} path parameter.
func ownedPath(r *http.Request) (int64, int64, error) {
	userID, ok := subjectID(r)
	if !ok {
		return 0, 0, pmscanauth.ErrUnauthorized
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, badRequest("id must be a positive integer")
	}
	return userID, id, nil
}
