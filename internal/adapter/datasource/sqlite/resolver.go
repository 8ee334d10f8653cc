// Package sqlite file: internal/adapter/datasource/sqlite/resolver.go
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
)

// spatialFallbackTable 是 .ta/.la/.pa 空间数据文件共用的通用表名。
const spatialFallbackTable = "GeoArea"

// spatialExtensions 是三种主要空间数据扩展名。
var spatialExtensions = []string{".ta", ".la", ".pa"}

// TableResolver 把外部 (语言模型) 提供的、可能不准确的表引用修复为
// 文件中真实存在的表名。模型经常把文件显示名当成表名回传，
// 解析器按固定顺序尝试一串独立策略来纠正，而不要求模型精确掌握映射。
type TableResolver struct {
	categories []domain.Category
}

// NewTableResolver 创建表名解析器，categories 为分类字典 (声明顺序即求值顺序)。
func NewTableResolver(categories []domain.Category) *TableResolver {
	return &TableResolver{categories: categories}
}

// Resolve 按序执行解析策略链:
//  1. 名称本身就是 store 中存在的表 → 原样返回 (校验短路启发式)；
//  2. 分类字典反查：小写后与某条规则的文件通配完全相等，
//     或是该通配去扩展名后的词干 → 返回规则声明的表；
//  3. 名称带空间数据扩展名 → 返回通用空间表名；
//  4. 全部未命中 → 原样返回，调用方随后的存在性检查会失败。
func (r *TableResolver) Resolve(ctx context.Context, db *sql.DB, proposed string) string {
	if ok, err := HasTable(ctx, db, proposed); err == nil && ok {
		return proposed
	}
	if table, ok := r.resolveFromTaxonomy(proposed); ok {
		return table
	}
	if table, ok := resolveByExtension(proposed); ok {
		return table
	}
	return proposed
}

// resolveFromTaxonomy 对分类字典做大小写不敏感反查。
func (r *TableResolver) resolveFromTaxonomy(proposed string) (string, bool) {
	lower := strings.ToLower(proposed)
	for _, category := range r.categories {
		for _, rule := range category.Rules {
			pattern := strings.ToLower(rule.FilePattern)
			// 精确命中文件名 (如 'Sample.ta')
			if pattern == lower {
				return rule.Table, true
			}
			// 命中通配的词干 (如 'Sample' 对 'Sample.ta')，
			// 用于修复 "更新 Sample 表" 这类口语化引用
			if strings.HasPrefix(pattern, lower+".") {
				return rule.Table, true
			}
		}
	}
	return "", false
}

// resolveByExtension 处理带空间数据扩展名的引用。
func resolveByExtension(proposed string) (string, bool) {
	lower := strings.ToLower(proposed)
	for _, ext := range spatialExtensions {
		if strings.HasSuffix(lower, ext) {
			return spatialFallbackTable, true
		}
	}
	return "", false
}
