package httpapi

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/fleet"
	"github.com/MrEthical07/pmscanauth/internal/repository"
)

const dateLayout = "2006-01-02"

type createRecordRequest struct {
	Data string `json:"data" validate:"required,base64"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type renameRecordRequest struct {
	Name string `json:"name" validate:"required"`
}

type appendDataRequest struct {
	Data string `json:"data" validate:"required,base64"`
}

// recordView is the JSON form of a record. Data is base64.
type recordView struct {
	ID        int64     `json:"id"`
	PMScanID  int64     `json:"pmScanId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type recordPageView struct {
	Records []recordView   `json:"records"`
	Meta    fleet.PageMeta `json:"meta"`
}

func toRecordView(rec repository.Record) recordView {
	return recordView{
		ID:        rec.ID,
		PMScanID:  rec.DeviceID,
		Name:      rec.Name,
		Type:      rec.Type,
		Data:      rec.Data,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (a *API) createRecord(w http.ResponseWriter, r *http.Request) {
	userID, deviceID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req createRecordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		a.fail(w, r, badRequest("data must be base64 encoded"))
		return
	}

	rec, err := a.fleet.CreateRecord(r.Context(), userID, deviceID, fleet.NewRecord{
		Name: req.Name,
		Type: req.Type,
		Data: data,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordView(rec))
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	userID, deviceID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req, err := pageRequest(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	page, err := a.fleet.ListRecords(r.Context(), userID, deviceID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := recordPageView{Records: make([]recordView, 0, len(page.Records)), Meta: page.Meta}
	for _, rec := range page.Records {
		out.Records = append(out.Records, toRecordView(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	userID, recordID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rec, err := a.fleet.GetRecord(r.Context(), userID, recordID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (a *API) renameRecord(w http.ResponseWriter, r *http.Request) {
	userID, recordID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req renameRecordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	rec, err := a.fleet.RenameRecord(r.Context(), userID, recordID, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (a *API) appendRecordData(w http.ResponseWriter, r *http.Request) {
	userID, recordID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req appendDataRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		a.fail(w, r, badRequest("data must be base64 encoded"))
		return
	}
	rec, err := a.fleet.AppendRecordData(r.Context(), userID, recordID, data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	userID, recordID, err := ownedPath(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	msg, err := a.fleet.DeleteRecord(r.Context(), userID, recordID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (a *API) listRecordDates(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(r)
	if !ok {
		a.fail(w, r, pmscanauth.ErrUnauthorized)
		return
	}
	days, err := a.fleet.ListRecordDates(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.UTC().Format(dateLayout))
	}
	writeJSON(w, http.StatusOK, out)
}

// pageRequest parses ?page=&limit=&date=. Range clamping is left to fleet.
func pageRequest(r *http.Request) (fleet.PageRequest, error) {
	q := r.URL.Query()
	var req fleet.PageRequest

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, badRequest("page must be an integer")
		}
		req.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, badRequest("limit must be an integer")
		}
		req.Limit = n
	}
	if v := q.Get("date"); v != "" {
		day, err := time.Parse(dateLayout, v)
		if err != nil {
			return req, badRequest("date must be formatted as YYYY-MM-DD")
		}
		req.Day = day
	}
	return req, nil
}
