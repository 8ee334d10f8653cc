// Package sqlite file: internal/adapter/datasource/sqlite/read.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
)

// SelectAll 读取一张表的全部行，返回结果集的列顺序与物化后的行。
// 空表也返回完整的列清单，结果集元数据在零行时同样可用。
func SelectAll(ctx context.Context, db *sql.DB, table string) ([]string, []map[string]any, error) {
	exists, err := HasTable(ctx, db, table)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: %s", port.ErrTableNotFound, table)
	}

	query := fmt.Sprintf("SELECT * FROM %q", table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
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
	return columns, out, rows.Err()
}
