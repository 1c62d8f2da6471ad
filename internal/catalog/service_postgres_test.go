package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPGService(t *testing.T) (*PGService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cameras").WillReturnResult(sqlmock.NewResult(0, 0))
	svc, err := NewPGService(db)
	if err != nil {
		t.Fatalf("NewPGService() error: %v", err)
	}
	svc.nowFunc = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return svc, mock
}

func TestPGServiceCreate(t *testing.T) {
	svc, mock := newMockPGService(t)

	mock.ExpectExec("INSERT INTO cameras").
		WithArgs(sqlmock.AnyArg(), "Mirrorless Kit", "Fujifilm", "X-T5", sqlmock.AnyArg(), "USD", "", StatusAvailable, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := svc.Create(validCamera())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceListByStatus(t *testing.T) {
	svc, mock := newMockPGService(t)
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "brand", "model", "daily_rate", "currency", "image_url", "status", "created_at", "modified_at"}).
		AddRow("c-1", "Mirrorless Kit", "Fujifilm", "X-T5", "49.90", "USD", "", "available", now, now)
	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE status = \\$1 ORDER BY").
		WithArgs("available").
		WillReturnRows(rows)

	cameras, err := svc.List("Available")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(cameras) != 1 || cameras[0].DailyRate.String() != "49.9" {
		t.Fatalf("unexpected cameras: %+v", cameras)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceSetStatusMissing(t *testing.T) {
	svc, mock := newMockPGService(t)

	mock.ExpectExec("UPDATE cameras SET status").
		WithArgs("c-9", StatusRented, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := svc.SetStatus("c-9", "rented"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceRent(t *testing.T) {
	svc, mock := newMockPGService(t)
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "name", "brand", "model", "daily_rate", "currency", "image_url", "status", "created_at", "modified_at"}

	mock.ExpectQuery(`UPDATE cameras SET status = \$2, modified_at = \$3 WHERE id = \$1 AND status = \$4 RETURNING`).
		WithArgs("c-1", StatusRented, sqlmock.AnyArg(), StatusAvailable).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("c-1", "Mirrorless Kit", "Fujifilm", "X-T5", "49.90", "USD", "", StatusRented, now, now))

	cam, err := svc.Rent("c-1")
	if err != nil {
		t.Fatalf("Rent() error: %v", err)
	}
	if cam.Status != StatusRented {
		t.Fatalf("expected rented, got %q", cam.Status)
	}

	mock.ExpectQuery(`UPDATE cameras SET status = \$2, modified_at = \$3 WHERE id = \$1 AND status = \$4 RETURNING`).
		WithArgs("c-1", StatusRented, sqlmock.AnyArg(), StatusAvailable).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE id = \\$1").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("c-1", "Mirrorless Kit", "Fujifilm", "X-T5", "49.90", "USD", "", StatusRented, now, now))

	if _, err := svc.Rent("c-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	mock.ExpectQuery(`UPDATE cameras SET status = \$2`).
		WithArgs("c-404", StatusRented, sqlmock.AnyArg(), StatusAvailable).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE id = \\$1").
		WithArgs("c-404").
		WillReturnRows(sqlmock.NewRows(cols))

	if _, err := svc.Rent("c-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceGetMissing(t *testing.T) {
	svc, mock := newMockPGService(t)

	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE id = \\$1").
		WithArgs("c-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := svc.Get("c-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPGServiceDelete(t *testing.T) {
	svc, mock := newMockPGService(t)

	mock.ExpectExec("DELETE FROM cameras WHERE id = \\$1").
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Delete("c-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
