// Package sqlite — DGSS 调查文件 (.ta/.la/.pa/.db 均为 SQLite 容器) 的访问适配器。
// internal/adapter/datasource/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"

	_ "modernc.org/sqlite"
)

// systemTables 是不向用户展示的容器内部表。
var systemTables = map[string]struct{}{
	"android_metadata": {},
	"sqlite_sequence":  {},
}

// Open 打开一个调查数据文件。连接按操作打开、响应前关闭，不做跨请求复用。
func Open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", port.ErrFileNotFound, path)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open '%s' 失败: %w", path, err)
	}
	return db, nil
}

// Tables 返回容器中全部用户可见表名 (过滤 sqlite_ 内部表)，按 sqlite_master 顺序。
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("查询 sqlite_master 失败: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// UserTables 在 Tables 的基础上再排除 android_metadata 等系统表。
func UserTables(ctx context.Context, db *sql.DB) ([]string, error) {
	all, err := Tables(ctx, db)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(all))
	for _, t := range all {
		if !IsSystemTable(t) {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// IsSystemTable 判断表是否为容器内部表。
func IsSystemTable(name string) bool {
	if strings.HasPrefix(name, "sqlite_") {
		return true
	}
	_, ok := systemTables[name]
	return ok
}

// HasTable 检查容器中是否存在指定表 (精确匹配，大小写敏感)。
func HasTable(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("检查表 '%s' 是否存在失败: %w", table, err)
	}
	return true, nil
}

// Inventory 通过 PRAGMA table_info 按声明顺序读取单表的列元数据。
func Inventory(ctx context.Context, db *sql.DB, table string) (domain.TableInventory, error) {
	inv := domain.TableInventory{Table: table}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return inv, fmt.Errorf("PRAGMA table_info(%q) 失败: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return inv, fmt.Errorf("扫描表 '%s' 列信息失败: %w", table, err)
		}
		inv.Columns = append(inv.Columns, domain.ColumnInfo{
			Name:      name,
			DataType:  colType,
			NotNull:   notNull != 0,
			IsPrimary: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return inv, err
	}
	if len(inv.Columns) == 0 {
		return inv, fmt.Errorf("%w: %s", port.ErrTableNotFound, table)
	}
	return inv, nil
}

// CanonicalColumn 在清单中按大小写不敏感规则查找列，返回其规范写法。
// Schema 元数据与游标报告的列名大小写可能不一致，写操作前必须先归一。
func CanonicalColumn(inv domain.TableInventory, name string) (string, bool) {
	for _, c := range inv.Columns {
		if c.Name == name {
			return c.Name, true
		}
	}
	for _, c := range inv.Columns {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}
