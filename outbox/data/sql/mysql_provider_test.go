package sql

import (
	"strings"
	"testing"
)

func TestMysqlQueryProvider_InsertSql(t *testing.T) {
	actual := createMysqlProvider().InsertSql()

	exp := "INSERT INTO `outbox_messages` (`id`, `status`) VALUES (?, ?)"

	if actual != exp {
		t.Errorf(`received "%s" but expected "%s"`, actual, exp)
	}
}

func TestMysqlQueryProvider_SelectByStatusSql(t *testing.T) {
	actual := createMysqlProvider().SelectByStatusSql(20)

	if !strings.Contains(actual, "WHERE `status` = ?") {
		t.Errorf("select SQL does not filter on the status column")
	}

	if !strings.Contains(actual, "ORDER BY `created_at` ASC") {
		t.Errorf("select SQL does not order by creation time ascending")
	}

	if !strings.Contains(actual, "LIMIT 20") {
		t.Errorf("select SQL does not contain the correct batch size limit")
	}
}

func TestMysqlQueryProvider_MarkPublishedSql(t *testing.T) {
	actual := createMysqlProvider().MarkPublishedSql()

	if !strings.Contains(actual, "`status` = 'published', `published_at` = NOW()") {
		t.Errorf("mark published SQL does not set the status and publication time")
	}

	if !strings.Contains(actual, "AND `status` = 'pending'") {
		t.Errorf("mark published SQL does not guard against terminal states")
	}
}

func TestMysqlQueryProvider_MarkFailedSql(t *testing.T) {
	actual := createMysqlProvider().MarkFailedSql()

	if !strings.Contains(actual, "`retry_count` = `retry_count` + 1") {
		t.Errorf("mark failed SQL does not increment the retry count")
	}

	if !strings.Contains(actual, "AND `status` = 'pending'") {
		t.Errorf("mark failed SQL does not guard against terminal states")
	}
}

func TestMysqlQueryProvider_IncrementRetrySql(t *testing.T) {
	actual := createMysqlProvider().IncrementRetrySql()

	if !strings.Contains(actual, "`retry_count` = `retry_count` + 1") {
		t.Errorf("increment retry SQL does not increment the retry count")
	}
}

func TestMysqlQueryProvider_DeletePublishedSql(t *testing.T) {
	actual := createMysqlProvider().DeletePublishedSql()

	if !strings.Contains(actual, "WHERE `status` = 'published' AND `published_at` <= ?") {
		t.Errorf("delete SQL does not contain a valid constraint")
	}
}

func TestMysqlQueryProvider_CountByStatusSql(t *testing.T) {
	actual := createMysqlProvider().CountByStatusSql()

	if !strings.Contains(actual, "WHERE `status` = ?") {
		t.Errorf("count SQL does not filter on the status column")
	}
}

func createMysqlProvider() *MysqlQueryProvider {
	return &MysqlQueryProvider{
		Columns: []string{"id", "status"},
		Table:   "outbox_messages",
	}
}
