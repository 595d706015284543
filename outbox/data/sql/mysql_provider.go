package sql

import (
	"fmt"
	"strings"
)

type MysqlQueryProvider struct {
	Table   string
	Columns []string
}

func (m MysqlQueryProvider) InsertSql() string {
	placeholders := strings.Trim(strings.Repeat("?, ", len(m.Columns)), ", ")

	return fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)", m.Table, strings.Join(m.escapeColumns(), ", "), placeholders)
}

func (m MysqlQueryProvider) SelectByStatusSql(batchSize int) string {
	return fmt.Sprintf("SELECT %s FROM `%s` WHERE `status` = ? ORDER BY `created_at` ASC LIMIT %d", strings.Join(m.escapeColumns(), ", "), m.Table, batchSize)
}

func (m MysqlQueryProvider) MarkPublishedSql() string {
	return fmt.Sprintf("UPDATE `%s` SET `status` = 'published', `published_at` = NOW() WHERE `id` = ? AND `status` = 'pending'", m.Table)
}

func (m MysqlQueryProvider) MarkFailedSql() string {
	return fmt.Sprintf("UPDATE `%s` SET `status` = 'failed', `last_error` = ?, `retry_count` = `retry_count` + 1 WHERE `id` = ? AND `status` = 'pending'", m.Table)
}

func (m MysqlQueryProvider) IncrementRetrySql() string {
	return fmt.Sprintf("UPDATE `%s` SET `retry_count` = `retry_count` + 1, `last_error` = ? WHERE `id` = ? AND `status` = 'pending'", m.Table)
}

func (m MysqlQueryProvider) DeletePublishedSql() string {
	return fmt.Sprintf("DELETE FROM `%s` WHERE `status` = 'published' AND `published_at` <= ?", m.Table)
}

func (m MysqlQueryProvider) CountByStatusSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM `%s` WHERE `status` = ?", m.Table)
}

func (m MysqlQueryProvider) escapeColumns() []string {
	var escaped []string
	for _, c := range m.Columns {
		escaped = append(escaped, "`"+c+"`")
	}

	return escaped
}
