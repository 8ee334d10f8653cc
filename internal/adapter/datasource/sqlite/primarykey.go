// Package sqlite file: internal/adapter/datasource/sqlite/primarykey.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
)

// identityColumns 是未声明主键时按约定充当行标识的列名白名单。
// DGSS 习惯用法: 路线号、地质点号、GUID 等。顺序即优先级无关——
// 实际以列的声明顺序取第一个命中者。
var identityColumns = []string{
	"ROUTECODE", "GEOPOINT", "GUID", "GEOLABEL", "ID", "_ID", "GEOID", "CODE",
}

// ResolvePrimaryKey 决定哪一列充当表的行标识。严格按以下顺序：
//  1. 容器元数据中正式声明的主键列；
//  2. 按列声明顺序第一个命中白名单 (大小写不敏感) 的列；
//  3. 均无则返回 port.ErrNoPrimaryKey。
//
// 每表每次操作都重新解析，不做缓存：目录可能被重扫，文件可能被外部改写。
func ResolvePrimaryKey(ctx context.Context, db *sql.DB, table string) (string, error) {
	inv, err := Inventory(ctx, db, table)
	if err != nil {
		// 探测失败按"未找到主键"处理，调用方逐动作记录而非中断批次
		return "", fmt.Errorf("%w (表 '%s' 元数据不可读: %v)", port.ErrNoPrimaryKey, table, err)
	}

	if pk := inv.DeclaredPrimaryKey(); pk != "" {
		return pk, nil
	}

	for _, col := range inv.Columns {
		for _, candidate := range identityColumns {
			if strings.EqualFold(col.Name, candidate) {
				return col.Name, nil
			}
		}
	}

	return "", fmt.Errorf("%w: 表 '%s'", port.ErrNoPrimaryKey, table)
}
