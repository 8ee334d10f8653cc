// Package sqlite file: internal/adapter/datasource/sqlite/context.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// ContextRows 按路线号/地质点号收集与当前操作相关的行，作为提示词的数据上下文。
// 只命中地质点号时每表取 1 行 (精确定位)，只有路线号时每表最多 5 行，
// 约束提示词的 token 体积。收集是尽力而为的：单表失败记日志后继续。
func ContextRows(ctx context.Context, path, routeCode, geoPoint string) (map[string][]map[string]any, error) {
	if routeCode == "" && geoPoint == "" {
		return nil, nil
	}

	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := UserTables(ctx, db)
	if err != nil {
		return nil, err
	}

	collected := make(map[string][]map[string]any)
	for _, table := range tables {
		inv, err := Inventory(ctx, db, table)
		if err != nil {
			slog.Warn("[ContextRows] 读取表结构失败", "table", table, "error", err)
			continue
		}

		var conditions []string
		var args []any
		if routeCode != "" {
			if col, ok := CanonicalColumn(inv, "ROUTECODE"); ok {
				conditions = append(conditions, fmt.Sprintf("%q = ?", col))
				args = append(args, routeCode)
			}
		}
		if geoPoint != "" {
			if col, ok := CanonicalColumn(inv, "GEOPOINT"); ok {
				conditions = append(conditions, fmt.Sprintf("%q = ?", col))
				args = append(args, geoPoint)
			}
		}
		if len(conditions) == 0 {
			continue
		}

		limit := 5
		if geoPoint != "" {
			limit = 1
		}
		query := fmt.Sprintf("SELECT * FROM %q WHERE %s LIMIT %d", table, strings.Join(conditions, " AND "), limit)

		rows, err := queryRows(ctx, db, query, args...)
		if err != nil {
			slog.Warn("[ContextRows] 查询上下文数据失败", "table", table, "error", err)
			continue
		}
		if len(rows) > 0 {
			collected[table] = rows
		}
	}
	return collected, nil
}

// queryRows 把一次查询的结果集物化为 map 切片，[]byte 统一转为 string。
func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
