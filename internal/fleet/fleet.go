package fleet

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/repository"
)

var (
	ErrDeviceNotFound = errors.New("pmscan not found")
	ErrRecordNotFound = errors.New("record not found")
	// ErrDeviceExists is returned when the user already owns a device with
	// the same device name.
	ErrDeviceExists = errors.New("pmscan already exists")
	// ErrForbidden is returned when the resource belongs to another user.
	ErrForbidden = errors.New("not allowed to access this resource")
)

const (
	DeviceDeletedMessage = "PMScan deleted successfully"
	RecordDeletedMessage = "Record deleted successfully"

	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage keeps (page-1)*limit inside an int32 offset.
	MaxPage = math.MaxInt32 / MaxPageLimit

	recordNameTimeLayout = "2006-01-02T15:04:05"
)

// UserLookup confirms an account exists.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (repository.User, error)
}

// DeviceStore persists devices.
type DeviceStore interface {
	Create(ctx context.Context, d repository.Device) (repository.Device, error)
	GetByID(ctx context.Context, id int64) (repository.Device, error)
	FindByDeviceName(ctx context.Context, userID int64, deviceName string) (repository.Device, error)
	ListByUser(ctx context.Context, userID int64) ([]repository.Device, error)
	Update(ctx context.Context, id int64, u repository.DeviceUpdate) (repository.Device, error)
	Delete(ctx context.Context, id int64) error
}

// RecordStore persists records.
type RecordStore interface {
	Create(ctx context.Context, r repository.Record) (repository.Record, error)
	GetByID(ctx context.Context, id int64) (repository.Record, error)
	ListByDevice(ctx context.Context, deviceID int64, f repository.RecordFilter) ([]repository.Record, int64, error)
	Rename(ctx context.Context, id int64, name string) (repository.Record, error)
	AppendData(ctx context.Context, id int64, data []byte) (repository.Record, error)
	Delete(ctx context.Context, id int64) error
	ListDatesByUser(ctx context.Context, userID int64) ([]time.Time, error)
}

// Service runs device and record operations for an authenticated user.
type Service struct {
	users   UserLookup
	devices DeviceStore
	records RecordStore
	now     func() time.Time
}

// NewService wires the stores.
func NewService(users UserLookup, devices DeviceStore, records RecordStore) *Service {
	return &Service{
		users:   users,
		devices: devices,
		records: records,
		now:     time.Now,
	}
}

// ownedDevice loads a device and checks it belongs to userID.
func (s *Service) ownedDevice(ctx context.Context, userID, deviceID int64) (repository.Device, error) {
	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Device{}, ErrDeviceNotFound
		}
		return repository.Device{}, err
	}
	if d.UserID != userID {
		return repository.Device{}, ErrForbidden
	}
	return d, nil
}

// ownedRecord loads a record and checks ownership through its device.
func (s *Service) ownedRecord(ctx context.Context, userID, recordID int64) (repository.Record, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Record{}, ErrRecordNotFound
		}
		return repository.Record{}, err
	}
	if _, err := s.ownedDevice(ctx, userID, rec.DeviceID); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return repository.Record{}, ErrForbidden
		}
		return repository.Record{}, err
	}
	return rec, nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return pmscanauth.ErrUserNotFound
		}
		return err
	}
	return nil
}
