package fleet

import (
	"context"
	"errors"

	"github.com/MrEthical07/pmscanauth/internal/repository"
)

// NewDevice registers a PMScan. Name defaults to DeviceName.
type NewDevice struct {
	Name       string
	DeviceID   string
	DeviceName string
	Display    []byte
}

// DeviceChanges carries optional device edits.
type DeviceChanges struct {
	Name       *string
	DeviceName *string
	Display    []byte
}

func (s *Service) CreateDevice(ctx context.Context, userID int64, in NewDevice) (repository.Device, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return repository.Device{}, err
	}

	_, err := s.devices.FindByDeviceName(ctx, userID, in.DeviceName)
	switch {
	case err == nil:
		return repository.Device{}, ErrDeviceExists
	case !errors.Is(err, repository.ErrNotFound):
		return repository.Device{}, err
	}

	name := in.Name
	if name == "" {
		name = in.DeviceName
	}
	d, err := s.devices.Create(ctx, repository.Device{
		UserID:     userID,
		Name:       name,
		DeviceID:   in.DeviceID,
		DeviceName: in.DeviceName,
		Display:    in.Display,
	})
	if errors.Is(err, repository.ErrConflict) {
		return repository.Device{}, ErrDeviceExists
	}
	return d, err
}

func (s *Service) ListDevices(ctx context.Context, userID int64) ([]repository.Device, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.devices.ListByUser(ctx, userID)
}

func (s *Service) GetDevice(ctx context.Context, userID, deviceID int64) (repository.Device, error) {
	return s.ownedDevice(ctx, userID, deviceID)
}

func (s *Service) UpdateDevice(ctx context.Context, userID, deviceID int64, in DeviceChanges) (repository.Device, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return repository.Device{}, err
	}
	d, err := s.devices.Update(ctx, deviceID, repository.DeviceUpdate{
		Name:       in.Name,
		DeviceName: in.DeviceName,
		Display:    in.Display,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		return repository.Device{}, ErrDeviceExists
	case errors.Is(err, repository.ErrNotFound):
		return repository.Device{}, ErrDeviceNotFound
	}
	return d, err
}

// DeleteDevice removes the device and its records.
func (s *Service) DeleteDevice(ctx context.Context, userID, deviceID int64) (string, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return "", err
	}
	if err := s.devices.Delete(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrDeviceNotFound
		}
		return "", err
	}
	return DeviceDeletedMessage, nil
}
