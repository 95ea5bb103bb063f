package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/pmscanauth/internal/repository"
)

// NewRecord is a capture pushed by a device. Name defaults to
// "<device name>_<UTC timestamp>".
type NewRecord struct {
	Name string
	Type string
	Data []byte
}

// PageRequest selects a page of records. Zero values take the defaults.
type PageRequest struct {
	Page  int
	Limit int
	// Day restricts the page to records created on that UTC date.
	Day time.Time
}

// PageMeta describes a records page.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

// RecordPage is one page of a device's records.
type RecordPage struct {
	Records []repository.Record
	Meta    PageMeta
}

func (s *Service) CreateRecord(ctx context.Context, userID, deviceID int64, in NewRecord) (repository.Record, error) {
	d, err := s.ownedDevice(ctx, userID, deviceID)
	if err != nil {
		return repository.Record{}, err
	}

	name := in.Name
	if name == "" {
		name = d.Name + "_" + s.now().UTC().Format(recordNameTimeLayout)
	}
	return s.records.Create(ctx, repository.Record{
		DeviceID: d.ID,
		Name:     name,
		Type:     in.Type,
		Data:     in.Data,
	})
}

func (s *Service) GetRecord(ctx context.Context, userID, recordID int64) (repository.Record, error) {
	return s.ownedRecord(ctx, userID, recordID)
}

// ListRecords pages through a device's records. Limit defaults to
// DefaultPageLimit and is capped at MaxPageLimit. Page is capped at MaxPage.
func (s *Service) ListRecords(ctx context.Context, userID, deviceID int64, req PageRequest) (RecordPage, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return RecordPage{}, err
	}

	page, limit := normalizePage(req.Page, req.Limit)
	recs, total, err := s.records.ListByDevice(ctx, deviceID, repository.RecordFilter{
		Day:    req.Day,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return RecordPage{}, err
	}

	return RecordPage{
		Records: recs,
		Meta: PageMeta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

func (s *Service) RenameRecord(ctx context.Context, userID, recordID int64, name string) (repository.Record, error) {
	if _, err := s.ownedRecord(ctx, userID, recordID); err != nil {
		return repository.Record{}, err
	}
	rec, err := s.records.Rename(ctx, recordID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Record{}, ErrRecordNotFound
	}
	return rec, err
}

// AppendRecordData concatenates data to the stored payload.
func (s *Service) AppendRecordData(ctx context.Context, userID, recordID int64, data []byte) (repository.Record, error) {
	if _, err := s.ownedRecord(ctx, userID, recordID); err != nil {
		return repository.Record{}, err
	}
	rec, err := s.records.AppendData(ctx, recordID, data)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Record{}, ErrRecordNotFound
	}
	return rec, err
}

func (s *Service) DeleteRecord(ctx context.Context, userID, recordID int64) (string, error) {
	if _, err := s.ownedRecord(ctx, userID, recordID); err != nil {
		return "", err
	}
	if err := s.records.Delete(ctx, recordID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrRecordNotFound
		}
		return "", err
	}
	return RecordDeletedMessage, nil
}

// ListRecordDates returns the distinct UTC days holding records across all of
// the user's devices.
func (s *Service) ListRecordDates(ctx context.Context, userID int64) ([]time.Time, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.records.ListDatesByUser(ctx, userID)
}

func normalizePage(page, limit int) (int, int) {
	page = min(max(page, 1), MaxPage)
	switch {
	case limit < 1:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return page, limit
}
