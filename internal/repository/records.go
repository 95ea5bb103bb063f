package repository

import (
	"context"
	"time"
)

const (
	recordColumns = `id, device_id, name, type, data, created_at, updated_at`

	insertRecordQuery = `INSERT INTO records (device_id, name, type, data)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + recordColumns

	recordByIDQuery = `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	recordsByDeviceQuery = `SELECT ` + recordColumns + ` FROM records
		WHERE device_id = $1
		AND ($2::date IS NULL OR (created_at AT TIME ZONE 'UTC')::date = $2::date)
		ORDER BY id
		LIMIT $3 OFFSET $4`

	countRecordsByDeviceQuery = `SELECT count(*) FROM records
		WHERE device_id = $1
		AND ($2::date IS NULL OR (created_at AT TIME ZONE 'UTC')::date = $2::date)`

	renameRecordQuery = `UPDATE records SET name = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	appendRecordDataQuery = `UPDATE records SET data = data || $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	deleteRecordQuery = `DELETE FROM records WHERE id = $1`

	recordDatesByUserQuery = `SELECT DISTINCT (r.created_at AT TIME ZONE 'UTC')::date AS day
		FROM records r
		JOIN devices d ON d.id = r.device_id
		WHERE d.user_id = $1
		ORDER BY day`
)

// RecordFilter narrows ListByDevice. A zero Day matches every day.
type RecordFilter struct {
	Day    time.Time
	Offset int
	Limit  int
}

// RecordRepository persists sensor records.
type RecordRepository struct {
	db DBTX
}

// NewRecordRepository returns a repository over db.
func NewRecordRepository(db DBTX) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, rec Record) (Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, insertRecordQuery,
		rec.DeviceID, rec.Name, rec.Type, nonNilBytes(rec.Data)))
}

func (r *RecordRepository) GetByID(ctx context.Context, id int64) (Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, recordByIDQuery, id))
}

// ListByDevice returns one page of a device's records and the total count
// matching f.
func (r *RecordRepository) ListByDevice(ctx context.Context, deviceID int64, f RecordFilter) ([]Record, int64, error) {
	var day any
	if !f.Day.IsZero() {
		day = f.Day.UTC().Format(time.DateOnly)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countRecordsByDeviceQuery, deviceID, day).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	rows, err := r.db.QueryContext(ctx, recordsByDeviceQuery, deviceID, day, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	out := make([]Record, 0, f.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return out, total, nil
}

func (r *RecordRepository) Rename(ctx context.Context, id int64, name string) (Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, renameRecordQuery, id, name))
}

// AppendData concatenates data to the stored payload in a single statement.
func (r *RecordRepository) AppendData(ctx context.Context, id int64, data []byte) (Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, appendRecordDataQuery, id, nonNilBytes(data)))
}

func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteRecordQuery, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// ListDatesByUser returns the distinct UTC days on which any of the user's
// devices stored a record, oldest first.
func (r *RecordRepository) ListDatesByUser(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, recordDatesByUserQuery, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]time.Time, 0)
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, mapError(err)
		}
		out = append(out, day.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.DeviceID, &rec.Name, &rec.Type, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, mapError(err)
	}
	return rec, nil
}
