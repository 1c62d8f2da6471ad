package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRoleAdminStore(t *testing.T) {
	users := NewInMemoryUserStore()
	_ = users.Put(User{ID: "u-admin", Username: "admin", PasswordHash: "h", Roles: []string{RoleAdmin}})
	_ = users.Put(User{ID: "u-cust", Username: "ana", PasswordHash: "h", Roles: []string{RoleCustomer}})

	store, err := NewRoleAdminStore(users)
	if err != nil {
		t.Fatalf("NewRoleAdminStore() error: %v", err)
	}
	ctx := context.Background()

	cases := map[string]bool{"u-admin": true, "u-cust": false, "u-missing": false, "": false}
	for id, want := range cases {
		got, err := store.GetAdminFlag(ctx, id)
		if err != nil {
			t.Fatalf("GetAdminFlag(%q) error: %v", id, err)
		}
		if got != want {
			t.Fatalf("GetAdminFlag(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestPostgresAdminStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS admin_users").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresAdminStore(db)
	if err != nil {
		t.Fatalf("NewPostgresAdminStore() error: %v", err)
	}
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO admin_users").
		WithArgs("u-1", true).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.SetAdminFlag(ctx, "u-1", true); err != nil {
		t.Fatalf("SetAdminFlag() error: %v", err)
	}

	mock.ExpectQuery("SELECT is_admin FROM admin_users WHERE user_id = \\$1").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(true))
	isAdmin, err := store.GetAdminFlag(ctx, "u-1")
	if err != nil || !isAdmin {
		t.Fatalf("GetAdminFlag() = %v, %v; want true", isAdmin, err)
	}

	mock.ExpectQuery("SELECT is_admin FROM admin_users WHERE user_id = \\$1").
		WithArgs("u-2").
		WillReturnError(sql.ErrNoRows)
	isAdmin, err = store.GetAdminFlag(ctx, "u-2")
	if err != nil || isAdmin {
		t.Fatalf("GetAdminFlag() for missing row = %v, %v; want false, nil", isAdmin, err)
	}

	mock.ExpectQuery("SELECT is_admin FROM admin_users WHERE user_id = \\$1").
		WithArgs("u-3").
		WillReturnError(errors.New("connection refused"))
	if _, err := store.GetAdminFlag(ctx, "u-3"); err == nil {
		t.Fatalf("expected error to surface")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
