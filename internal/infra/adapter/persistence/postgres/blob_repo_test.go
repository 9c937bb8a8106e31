package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/infra/adapter/persistence/postgres"
)

func TestBlobRepo_Put(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO message_blobs`)).
		WithArgs("t1/prepare_m1.json", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := postgres.NewBlobRepo(db).Put(context.Background(), "t1/prepare_m1.json", []byte(`{}`)); err != nil {
		t.Fatalf("Put err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBlobRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM message_blobs`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"eventId":"e"}`)))

	got, err := postgres.NewBlobRepo(db).Get(context.Background(), "k")
	if err != nil || string(got) != `{"eventId":"e"}` {
		t.Fatalf("Get=(%s, %v)", got, err)
	}
}

func TestBlobRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM message_blobs`).WillReturnError(sql.ErrNoRows)

	_, err := postgres.NewBlobRepo(db).Get(context.Background(), "k")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
