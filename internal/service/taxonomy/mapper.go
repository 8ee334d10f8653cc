// Package taxonomy file: internal/service/taxonomy/mapper.go
package taxonomy

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/adapter/datasource/sqlite"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
)

// Mapper 把发现的文件按分类字典归类，并提供列名 → 标签的投影。
// 匹配是纯读取：规则永不被修改，产物只有 MatchedItem 值。
type Mapper struct {
	categories []domain.Category
}

// NewMapper 创建分类映射器。
func NewMapper(categories []domain.Category) *Mapper {
	return &Mapper{categories: categories}
}

// Categories 返回字典全文 (声明顺序)，供表名解析器反查。
func (m *Mapper) Categories() []domain.Category {
	return m.categories
}

// Classify 对每个分类、每条规则逐一测试所有已发现文件：
// 通配命中 → 目标表确实存在 → 必需字段齐备，三关全过才记为 MatchedItem。
// 同一分类内按 (文件路径, 表名) 去重，先命中的规则决定描述与字段映射。
func (m *Mapper) Classify(ctx context.Context, files []domain.DataStore) map[string]domain.CategoryResult {
	// 同一文件会被多条规则反复探测，单次归类内复用连接
	conns := make(map[string]*sql.DB)
	defer func() {
		for _, db := range conns {
			_ = db.Close()
		}
	}()
	openCached := func(path string) (*sql.DB, error) {
		if db, ok := conns[path]; ok {
			return db, nil
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		conns[path] = db
		return db, nil
	}

	result := make(map[string]domain.CategoryResult, len(m.categories))
	for _, category := range m.categories {
		entry := domain.CategoryResult{
			Icon:   category.Icon,
			EnName: category.EnName,
			Items:  []domain.MatchedItem{},
		}
		seen := make(map[string]struct{})

		for _, rule := range category.Rules {
			for _, file := range files {
				baseName := filepath.Base(file.Path)
				if !matchPattern(rule.FilePattern, file.Name, baseName) {
					continue
				}

				db, err := openCached(file.Path)
				if err != nil {
					slog.Debug("[Mapper] 打开文件失败，跳过", "path", file.Path, "error", err)
					continue
				}
				ok, err := sqlite.HasTable(ctx, db, rule.Table)
				if err != nil || !ok {
					continue
				}
				if len(rule.CheckFields) > 0 && !tableHasFields(ctx, db, rule.Table, rule.CheckFields) {
					continue
				}

				key := file.Path + ":" + rule.Table
				if _, dup := seen[key]; dup {
					// 该 (文件, 表) 已由更早的规则记录，后续命中一律忽略
					continue
				}
				seen[key] = struct{}{}

				entry.Items = append(entry.Items, domain.MatchedItem{
					FileName:    file.Name,
					TableName:   rule.Table,
					FilePath:    file.Path,
					Description: rule.Description,
					RowFilter:   rule.RowFilter,
				})
			}
		}
		result[category.Key] = entry
	}
	return result
}

// tableHasFields 检查表是否包含全部必需字段。探测失败视为不满足。
func tableHasFields(ctx context.Context, db *sql.DB, table string, required []string) bool {
	inv, err := sqlite.Inventory(ctx, db, table)
	if err != nil {
		return false
	}
	for _, field := range required {
		found := false
		for _, col := range inv.Columns {
			if col.Name == field {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ColumnProjection 为单表渲染查找列标签映射：
// 第一条文件通配命中且声明表等于请求表的规则胜出，无命中返回空映射。
// 这里只拿到文件基名，匹配语义与 Classify 保持一致 (基名即相对路径)。
func (m *Mapper) ColumnProjection(fileName, tableName string) map[string]string {
	base := filepath.Base(fileName)
	for _, category := range m.categories {
		for _, rule := range category.Rules {
			if rule.Table != tableName {
				continue
			}
			if !matchPattern(rule.FilePattern, base, base) {
				continue
			}
			return rule.FieldMap()
		}
	}
	return map[string]string{}
}

// ProjectedColumns 按字段映射的声明顺序返回 (列名, 标签) 序列，
// 供 /api/data 过滤并重排展示列。
func (m *Mapper) ProjectedColumns(fileName, tableName string) []domain.FieldLabel {
	base := filepath.Base(fileName)
	for _, category := range m.categories {
		for _, rule := range category.Rules {
			if rule.Table != tableName {
				continue
			}
			if !matchPattern(rule.FilePattern, base, base) {
				continue
			}
			return rule.Fields
		}
	}
	return nil
}

// MappingText 生成供语言模型阅读的字典全文：
// 分类、表、对应文件、说明、以及 "列=标签" 列表。
func (m *Mapper) MappingText() string {
	var sb strings.Builder
	for _, category := range m.categories {
		fmt.Fprintf(&sb, "### %s (%s)\n", category.Key, category.EnName)
		for _, rule := range category.Rules {
			fmt.Fprintf(&sb, "- 表名: %s (对应文件: %s) | 说明: %s\n", rule.Table, rule.FilePattern, rule.Description)
			if len(rule.Fields) > 0 {
				pairs := make([]string, 0, len(rule.Fields))
				for _, f := range rule.Fields {
					pairs = append(pairs, f.Column+"="+f.Label)
				}
				fmt.Fprintf(&sb, "  字段: %s\n", strings.Join(pairs, "; "))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
