package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	s "github.com/genc-murat/outbox-broker/outbox/data/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// columns is the select list shared by both query providers; the scan order
// in scanMessage must match it.
var columns = []string{"id", "message_type", "payload", "routing_key", "exchange", "headers", "status", "created_at", "published_at", "retry_count", "last_error"}

type queryProvider interface {
	InsertSql() string
	SelectByStatusSql(batchSize int) string
	MarkPublishedSql() string
	MarkFailedSql() string
	IncrementRetrySql() string
	DeletePublishedSql() string
	CountByStatusSql() string
}

// SQLStore is the durable Store backed by a relational database. Every
// operation issues a single auto-committed statement scoped to that call, so
// multiple relay replicas can share one table; the pending-status guard in
// each UPDATE keeps MarkAsPublished/MarkAsFailed idempotent under overlap.
type SQLStore struct {
	db            *sql.DB
	queryProvider queryProvider
}

func NewSQLStore(db *sql.DB, driver string, table string) *SQLStore {
	return NewSQLStoreWithQueryProvider(db, newQueryProvider(driver, table, columns))
}

func NewSQLStoreWithQueryProvider(db *sql.DB, qp queryProvider) *SQLStore {
	return &SQLStore{
		db:            db,
		queryProvider: qp,
	}
}

func (st *SQLStore) Store(ctx context.Context, msg *Message) (*Message, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	m := msg.copy()
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	m.Status = StatusPending
	m.CreatedAt = time.Now().In(time.UTC)
	m.PublishedAt = sql.NullTime{}

	headers, err := marshalHeaders(m.Headers)
	if err != nil {
		return nil, err
	}

	_, err = st.db.ExecContext(ctx, st.queryProvider.InsertSql(),
		m.Id, m.MessageType, m.Payload, m.RoutingKey, m.Exchange, headers, m.Status.String(), m.CreatedAt, m.PublishedAt, m.RetryCount, m.LastError)
	if err != nil {
		return nil, errors.Errorf("outbox: error storing message in repository: %s", err)
	}

	return m, nil
}

func (st *SQLStore) GetPending(ctx context.Context, batchSize int) ([]*Message, error) {
	return st.getByStatus(ctx, StatusPending, batchSize)
}

func (st *SQLStore) GetFailed(ctx context.Context, batchSize int) ([]*Message, error) {
	return st.getByStatus(ctx, StatusFailed, batchSize)
}

func (st *SQLStore) MarkAsPublished(ctx context.Context, id uuid.UUID) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.MarkPublishedSql(), id)
	if err != nil {
		return errors.Errorf("outbox: error marking message %s as published: %s", id, err)
	}

	return nil
}

func (st *SQLStore) MarkAsFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.MarkFailedSql(), errorMessage, id)
	if err != nil {
		return errors.Errorf("outbox: error marking message %s as failed: %s", id, err)
	}

	return nil
}

func (st *SQLStore) IncrementRetryCount(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.IncrementRetrySql(), errorMessage, id)
	if err != nil {
		return errors.Errorf("outbox: error recording retry for message %s: %s", id, err)
	}

	return nil
}

func (st *SQLStore) PendingCount(ctx context.Context) (uint, error) {
	return st.countByStatus(ctx, StatusPending)
}

func (st *SQLStore) FailedCount(ctx context.Context) (uint, error) {
	return st.countByStatus(ctx, StatusFailed)
}

func (st *SQLStore) DeletePublished(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := st.db.ExecContext(ctx, st.queryProvider.DeletePublishedSql(), olderThan)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (st *SQLStore) getByStatus(ctx context.Context, status Status, batchSize int) ([]*Message, error) {
	rows, err := st.db.QueryContext(ctx, st.queryProvider.SelectByStatusSql(batchSize), status.String())
	if err != nil {
		return nil, errors.Errorf("outbox: error fetching %s messages in repository: %s", status, err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Errorf("outbox: error iterating %s message rows: %s", status, err)
	}

	return msgs, nil
}

func (st *SQLStore) countByStatus(ctx context.Context, status Status) (uint, error) {
	res := st.db.QueryRowContext(ctx, st.queryProvider.CountByStatusSql(), status.String())

	var count uint
	if err := res.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	msg := &Message{}

	var headers []byte
	var status string
	err := rows.Scan(&msg.Id, &msg.MessageType, &msg.Payload, &msg.RoutingKey, &msg.Exchange, &headers, &status, &msg.CreatedAt, &msg.PublishedAt, &msg.RetryCount, &msg.LastError)
	if err != nil {
		return nil, errors.Errorf("outbox: error scanning message result into memory in repository: %s", err)
	}

	msg.Status = Status(status)
	msg.Headers, err = unmarshalHeaders(headers)
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func marshalHeaders(headers map[string]interface{}) ([]byte, error) {
	if len(headers) == 0 {
		return []byte("{}"), nil
	}

	b, err := json.Marshal(headers)
	if err != nil {
		return nil, errors.Errorf("outbox: error serializing message headers: %s", err)
	}

	return b, nil
}

func unmarshalHeaders(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	headers := map[string]interface{}{}
	if err := json.Unmarshal(raw, &headers); err != nil {
		return nil, errors.Errorf("outbox: error deserializing message headers: %s", err)
	}

	if len(headers) == 0 {
		return nil, nil
	}

	return headers, nil
}

func newQueryProvider(driver string, table string, columns []string) queryProvider {
	switch driver {
	case "postgres":
		return &s.PostgresQueryProvider{
			Table:   table,
			Columns: columns,
		}
	case "mysql":
		return &s.MysqlQueryProvider{
			Table:   table,
			Columns: columns,
		}
	}

	return nil
}
