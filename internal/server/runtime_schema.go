package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type rowQuerier interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}

type schemaColumn struct {
	table  string
	column string
}

// requiredColumns are read by the event store. Baby.timezone is optional and
// not listed.
var requiredColumns = []schemaColumn{
	{table: "Household", column: "ownerUserId"},
	{table: "HouseholdMember", column: "status"},
	{table: "Baby", column: "householdId"},
	{table: "Baby", column: "birthDate"},
	{table: "Baby", column: "sex"},
	{table: "Event", column: "babyId"},
	{table: "Event", column: "startTime"},
	{table: "Event", column: "endTime"},
	{table: "Event", column: "valueJson"},
}

func ValidateRuntimeSchema(ctx context.Context, q rowQuerier) error {
	if q == nil {
		return fmt.Errorf("database pool is nil")
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, q, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; apply the database migrations first",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, q rowQuerier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := q.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
