package sql

import (
	"fmt"
	"strings"
)

type PostgresQueryProvider struct {
	Table   string
	Columns []string
}

func (p PostgresQueryProvider) InsertSql() string {
	var placeholders []string
	for i := 1; i <= len(p.Columns); i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
	}

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, p.Table, strings.Join(p.Columns, ", "), strings.Join(placeholders, ", "))
}

func (p PostgresQueryProvider) SelectByStatusSql(batchSize int) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE status = $1 ORDER BY created_at ASC LIMIT %d`, strings.Join(p.Columns, ", "), p.Table, batchSize)
}

func (p PostgresQueryProvider) MarkPublishedSql() string {
	return fmt.Sprintf(`UPDATE %s SET status = 'published', published_at = NOW() WHERE id = $1 AND status = 'pending'`, p.Table)
}

func (p PostgresQueryProvider) MarkFailedSql() string {
	return fmt.Sprintf(`UPDATE %s SET status = 'failed', last_error = $1, retry_count = retry_count + 1 WHERE id = $2 AND status = 'pending'`, p.Table)
}

func (p PostgresQueryProvider) IncrementRetrySql() string {
	return fmt.Sprintf(`UPDATE %s SET retry_count = retry_count + 1, last_error = $1 WHERE id = $2 AND status = 'pending'`, p.Table)
}

func (p PostgresQueryProvider) DeletePublishedSql() string {
	return fmt.Sprintf(`DELETE FROM %s WHERE status = 'published' AND published_at <= $1`, p.Table)
}

func (p PostgresQueryProvider) CountByStatusSql() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, p.Table)
}
