package outbox

import (
	"context"
	"database/sql"
	"testing"
	"time"

	s "github.com/genc-murat/outbox-broker/outbox/data/sql"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-test/deep"
	"github.com/google/uuid"
)

type mockQueryProvider struct{}

func (mockQueryProvider) InsertSql() string {
	return "INSERT INTO outbox"
}

func (mockQueryProvider) SelectByStatusSql(batchSize int) string {
	return "SELECT FROM outbox"
}

func (mockQueryProvider) MarkPublishedSql() string {
	return "UPDATE outbox published"
}

func (mockQueryProvider) MarkFailedSql() string {
	return "UPDATE outbox failed"
}

func (mockQueryProvider) IncrementRetrySql() string {
	return "UPDATE outbox retry"
}

func (mockQueryProvider) DeletePublishedSql() string {
	return "DELETE FROM outbox"
}

func (mockQueryProvider) CountByStatusSql() string {
	return "SELECT COUNT FROM outbox"
}

func TestNewSQLStore(t *testing.T) {
	deep.CompareUnexportedFields = true
	defer func() {
		deep.CompareUnexportedFields = false
	}()

	db, _, _ := sqlmock.New()

	tests := []struct {
		name             string
		driver           string
		expQueryProvider queryProvider
	}{
		{
			name:             "mysql query provider",
			driver:           "mysql",
			expQueryProvider: &s.MysqlQueryProvider{Table: "outbox_messages", Columns: columns},
		},
		{
			name:             "postgres query provider",
			driver:           "postgres",
			expQueryProvider: &s.PostgresQueryProvider{Table: "outbox_messages", Columns: columns},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &SQLStore{
				db:            db,
				queryProvider: tt.expQueryProvider,
			}

			got := NewSQLStore(db, tt.driver, "outbox_messages")
			if diff := deep.Equal(exp, got); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestSQLStore_Store(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := store.Store(context.Background(), &Message{
		MessageType: "event.product",
		Payload:     []byte(`{"sku":"abc"}`),
		RoutingKey:  "product.created",
		Exchange:    "events",
		Headers:     map[string]interface{}{"source": "catalog"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("some SQL expectations were not met: %s", err)
	}

	if got.Id == uuid.Nil {
		t.Error("expected a generated id, got the zero uuid")
	}

	if got.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, got.Status)
	}

	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestSQLStore_StoreWithNilMessage(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	if _, err := store.Store(context.Background(), nil); err != ErrNilMessage {
		t.Errorf("expected ErrNilMessage, got %v", err)
	}
}

func TestSQLStore_StoreWithInsertError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	mock.ExpectExec("INSERT INTO outbox").WillReturnError(sql.ErrConnDone)

	if _, err := store.Store(context.Background(), &Message{}); err == nil {
		t.Error("expected an error when the insert fails, got nil")
	}
}

func TestSQLStore_GetPending(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	id1 := uuid.New()
	id2 := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow(id1.String(), "event.product", []byte("foo"), "product.created", "events", []byte(`{"source":"catalog"}`), "pending", now, nil, 0, "").
		AddRow(id2.String(), "event.price", []byte("bar"), "price.updated", "events", []byte("{}"), "pending", now.Add(time.Second), nil, 2, "broker unreachable")

	mock.ExpectQuery("SELECT FROM outbox").WithArgs("pending").WillReturnRows(rows)

	msgs, err := store.GetPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("some SQL expectations were not met: %s", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	exp1 := &Message{
		Id:          id1,
		MessageType: "event.product",
		Payload:     []byte("foo"),
		RoutingKey:  "product.created",
		Exchange:    "events",
		Headers:     map[string]interface{}{"source": "catalog"},
		Status:      StatusPending,
		CreatedAt:   now,
	}

	exp2 := &Message{
		Id:          id2,
		MessageType: "event.price",
		Payload:     []byte("bar"),
		RoutingKey:  "price.updated",
		Exchange:    "events",
		Status:      StatusPending,
		CreatedAt:   now.Add(time.Second),
		RetryCount:  2,
		LastError:   "broker unreachable",
	}

	if diff := deep.Equal(exp1, msgs[0]); diff != nil {
		t.Error(diff)
	}

	if diff := deep.Equal(exp2, msgs[1]); diff != nil {
		t.Error(diff)
	}
}

func TestSQLStore_GetFailed(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	id := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow(id.String(), "event.product", []byte("foo"), "", "", []byte("{}"), "failed", now, nil, 5, "Exceeded maximum retry attempts (5)")

	mock.ExpectQuery("SELECT FROM outbox").WithArgs("failed").WillReturnRows(rows)

	msgs, err := store.GetFailed(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	if msgs[0].Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, msgs[0].Status)
	}

	if msgs[0].LastError != "Exceeded maximum retry attempts (5)" {
		t.Errorf("unexpected last error: %q", msgs[0].LastError)
	}
}

func TestSQLStore_MarkAsPublished(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})
	id := uuid.New()

	mock.ExpectExec("UPDATE outbox published").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.MarkAsPublished(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("some SQL expectations were not met: %s", err)
	}

	t.Run("a missing row is not an error", func(t *testing.T) {
		mock.ExpectExec("UPDATE outbox published").WillReturnResult(sqlmock.NewResult(0, 0))

		if err := store.MarkAsPublished(context.Background(), id); err != nil {
			t.Errorf("unexpected error: %s", err)
		}
	})
}

func TestSQLStore_MarkAsFailed(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})
	id := uuid.New()

	mock.ExpectExec("UPDATE outbox failed").WithArgs("broker unreachable", id).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.MarkAsFailed(context.Background(), id, "broker unreachable"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("some SQL expectations were not met: %s", err)
	}
}

func TestSQLStore_IncrementRetryCount(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})
	id := uuid.New()

	mock.ExpectExec("UPDATE outbox retry").WithArgs("attempt failed", id).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.IncrementRetryCount(context.Background(), id, "attempt failed"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("some SQL expectations were not met: %s", err)
	}
}

func TestSQLStore_Counts(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	mock.ExpectQuery("SELECT COUNT FROM outbox").WithArgs("pending").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT COUNT FROM outbox").WithArgs("failed").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	if count, err := store.PendingCount(context.Background()); err != nil || count != 7 {
		t.Errorf("expected pending count 7, got %d (err: %v)", count, err)
	}

	if count, err := store.FailedCount(context.Background()); err != nil || count != 3 {
		t.Errorf("expected failed count 3, got %d (err: %v)", count, err)
	}
}

func TestSQLStore_DeletePublished(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	store := NewSQLStoreWithQueryProvider(db, mockQueryProvider{})

	mock.ExpectExec("DELETE FROM outbox").WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := store.DeletePublished(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if deleted != 42 {
		t.Errorf("expected 42 deleted rows, got %d", deleted)
	}
}
