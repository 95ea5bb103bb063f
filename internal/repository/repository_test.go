package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/pmscanauth"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "name", "password_digest", "created_at", "updated_at"})
}

func deviceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "device_id", "device_name", "display", "created_at", "updated_at"})
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "device_id", "name", "type", "data", "created_at", "updated_at"})
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

func TestUserCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(insertUserQuery)).
		WithArgs("alice@pmscan.test", "Alice", "$argon2id$digest").
		WillReturnRows(userRows().AddRow(int64(7), "alice@pmscan.test", "Alice", "$argon2id$digest", fixedTime, fixedTime))

	u, err := repo.Create(context.Background(), "alice@pmscan.test", "Alice", "$argon2id$digest")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.ID != 7 || u.Email != "alice@pmscan.test" || !u.CreatedAt.Equal(fixedTime) {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(insertUserQuery)).
		WithArgs("alice@pmscan.test", "Alice", "d").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), "alice@pmscan.test", "Alice", "d")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(userByEmailQuery)).
		WithArgs("ghost@pmscan.test").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByEmail(context.Background(), "ghost@pmscan.test"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserUpdatePartial(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	name := "Alice B"
	mock.ExpectQuery(q(updateUserQuery)).
		WithArgs(int64(7), nil, "Alice B", nil).
		WillReturnRows(userRows().AddRow(int64(7), "alice@pmscan.test", "Alice B", "d", fixedTime, fixedTime))

	u, err := repo.Update(context.Background(), 7, UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if u.Name != "Alice B" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestUserDeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(q(deleteUserQuery)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserDBErrorWrapped(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(userByIDQuery)).
		WithArgs(int64(1)).
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), 1)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDirectoryMapsNotFound(t *testing.T) {
	db, mock := newMock(t)
	dir := NewDirectory(NewUserRepository(db))

	mock.ExpectQuery(q(userByEmailQuery)).
		WithArgs("ghost@pmscan.test").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q(userByIDQuery)).
		WithArgs(int64(3)).
		WillReturnRows(userRows().AddRow(int64(3), "bob@pmscan.test", "Bob", "d", fixedTime, fixedTime))
	mock.ExpectQuery(q(updateUserQuery)).
		WithArgs(int64(4), nil, nil, "new-digest").
		WillReturnError(sql.ErrNoRows)

	if _, err := dir.FindByEmail(context.Background(), "ghost@pmscan.test"); !errors.Is(err, pmscanauth.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	rec, err := dir.FindByID(context.Background(), 3)
	if err != nil || rec.ID != 3 || rec.PasswordDigest != "d" {
		t.Fatalf("unexpected record %+v err=%v", rec, err)
	}
	if err := dir.UpdateCredential(context.Background(), 4, "new-digest"); !errors.Is(err, pmscanauth.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestDirectoryPassesOtherErrors(t *testing.T) {
	db, mock := newMock(t)
	dir := NewDirectory(NewUserRepository(db))

	mock.ExpectQuery(q(userByIDQuery)).
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection refused"))

	_, err := dir.FindByID(context.Background(), 3)
	if err == nil || errors.Is(err, pmscanauth.ErrUserNotFound) {
		t.Fatalf("expected a non-absence error, got %v", err)
	}
}

func TestDeviceCreateAndList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDeviceRepository(db)

	display := []byte{0x96, 0x00, 0x2c}
	mock.ExpectQuery(q(insertDeviceQuery)).
		WithArgs(int64(1), "Kitchen", "FF:9C:95:3E:A9:F9", "PMScan136476", display).
		WillReturnRows(deviceRows().AddRow(int64(5), int64(1), "Kitchen", "FF:9C:95:3E:A9:F9", "PMScan136476", display, fixedTime, fixedTime))
	mock.ExpectQuery(q(devicesByUserQuery)).
		WithArgs(int64(1)).
		WillReturnRows(deviceRows().
			AddRow(int64(5), int64(1), "Kitchen", "FF:9C:95:3E:A9:F9", "PMScan136476", display, fixedTime, fixedTime).
			AddRow(int64(6), int64(1), "PMScan000001", "", "PMScan000001", []byte{}, fixedTime, fixedTime))

	d, err := repo.Create(context.Background(), Device{
		UserID:     1,
		Name:       "Kitchen",
		DeviceID:   "FF:9C:95:3E:A9:F9",
		DeviceName: "PMScan136476",
		Display:    display,
	})
	if err != nil || d.ID != 5 {
		t.Fatalf("Create: %+v %v", d, err)
	}

	list, err := repo.ListByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[1].DeviceName != "PMScan000001" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestDeviceUpdateKeepsDisplayWhenNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDeviceRepository(db)

	name := "Garage"
	mock.ExpectQuery(q(updateDeviceQuery)).
		WithArgs(int64(5), "Garage", nil, nil, nil).
		WillReturnRows(deviceRows().AddRow(int64(5), int64(1), "Garage", "", "PMScan136476", []byte{1}, fixedTime, fixedTime))

	d, err := repo.Update(context.Background(), 5, DeviceUpdate{Name: &name})
	if err != nil || d.Name != "Garage" {
		t.Fatalf("Update: %+v %v", d, err)
	}
}

func TestRecordListByDevicePaged(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecordRepository(db)

	mock.ExpectQuery(q(countRecordsByDeviceQuery)).
		WithArgs(int64(5), nil).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(q(recordsByDeviceQuery)).
		WithArgs(int64(5), nil, 10, 10).
		WillReturnRows(recordRows().
			AddRow(int64(11), int64(5), "r11", "Datalogger record", []byte{1}, fixedTime, fixedTime).
			AddRow(int64(12), int64(5), "r12", "Datalogger record", []byte{2}, fixedTime, fixedTime))

	recs, total, err := repo.ListByDevice(context.Background(), 5, RecordFilter{Offset: 10, Limit: 10})
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if total != 12 || len(recs) != 2 || recs[0].ID != 11 {
		t.Fatalf("unexpected page: total=%d recs=%+v", total, recs)
	}
}

func TestRecordListByDeviceDayFilter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecordRepository(db)

	mock.ExpectQuery(q(countRecordsByDeviceQuery)).
		WithArgs(int64(5), "2025-03-14").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(q(recordsByDeviceQuery)).
		WithArgs(int64(5), "2025-03-14", 10, 0).
		WillReturnRows(recordRows())

	recs, total, err := repo.ListByDevice(context.Background(), 5, RecordFilter{Day: fixedTime, Limit: 10})
	if err != nil || total != 0 || len(recs) != 0 {
		t.Fatalf("unexpected result: %v %d %v", recs, total, err)
	}
}

func TestRecordAppendData(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecordRepository(db)

	mock.ExpectQuery(q(appendRecordDataQuery)).
		WithArgs(int64(11), []byte{3, 4}).
		WillReturnRows(recordRows().AddRow(int64(11), int64(5), "r11", "t", []byte{1, 2, 3, 4}, fixedTime, fixedTime))

	rec, err := repo.AppendData(context.Background(), 11, []byte{3, 4})
	if err != nil {
		t.Fatalf("AppendData: %v", err)
	}
	if string(rec.Data) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected data %v", rec.Data)
	}
}

func TestRecordDatesByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecordRepository(db)

	d1 := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q(recordDatesByUserQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"day"}).AddRow(d1).AddRow(d2))

	days, err := repo.ListDatesByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListDatesByUser: %v", err)
	}
	if len(days) != 2 || !days[0].Equal(d1) || !days[1].Equal(d2) {
		t.Fatalf("unexpected days %v", days)
	}
}
