package repository

import "context"

const (
	deviceColumns = `id, user_id, name, device_id, device_name, display, created_at, updated_at`

	insertDeviceQuery = `INSERT INTO devices (user_id, name, device_id, device_name, display)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + deviceColumns

	deviceByIDQuery = `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	deviceByNameQuery = `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 AND device_name = $2`

	devicesByUserQuery = `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 ORDER BY id`

	updateDeviceQuery = `UPDATE devices SET
		name = COALESCE($2, name),
		device_id = COALESCE($3, device_id),
		device_name = COALESCE($4, device_name),
		display = COALESCE($5, display),
		updated_at = now()
		WHERE id = $1
		RETURNING ` + deviceColumns

	deleteDeviceQuery = `DELETE FROM devices WHERE id = $1`
)

// DeviceRepository persists PMScan devices.
type DeviceRepository struct {
	db DBTX
}

// NewDeviceRepository returns a repository over db.
func NewDeviceRepository(db DBTX) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create inserts d. A duplicate device name for the same user yields
// ErrConflict.
func (r *DeviceRepository) Create(ctx context.Context, d Device) (Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx, insertDeviceQuery,
		d.UserID, d.Name, d.DeviceID, d.DeviceName, nonNilBytes(d.Display)))
}

func (r *DeviceRepository) GetByID(ctx context.Context, id int64) (Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx, deviceByIDQuery, id))
}

// FindByDeviceName looks up a device by its hardware name within one user's
// fleet.
func (r *DeviceRepository) FindByDeviceName(ctx context.Context, userID int64, deviceName string) (Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx, deviceByNameQuery, userID, deviceName))
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID int64) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, devicesByUserQuery, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Update applies the set fields of u. A nil Display keeps the stored one.
func (r *DeviceRepository) Update(ctx context.Context, id int64, u DeviceUpdate) (Device, error) {
	var display any
	if u.Display != nil {
		display = u.Display
	}
	return scanDevice(r.db.QueryRowContext(ctx, updateDeviceQuery,
		id, nullString(u.Name), nullString(u.DeviceID), nullString(u.DeviceName), display))
}

func (r *DeviceRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteDeviceQuery, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func scanDevice(row rowScanner) (Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.DeviceID, &d.DeviceName, &d.Display, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Device{}, mapError(err)
	}
	return d, nil
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
