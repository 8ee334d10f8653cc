// Package catalog file: internal/service/catalog/summary.go
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/adapter/datasource/sqlite"
)

// Summarize 生成单个容器的紧凑结构报告，供助手建立"全局地图"：
// 文件名、表数量、每表的主键 (正式声明，未声明显示 None) 与列清单。
func Summarize(ctx context.Context, path string) (string, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	tables, err := sqlite.Tables(ctx, db)
	if err != nil {
		return "", fmt.Errorf("读取 '%s' 的表清单失败: %w", path, err)
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Database File: %s", filepath.Base(path)))
	lines = append(lines, fmt.Sprintf("Total Tables: %d", len(tables)))

	for _, table := range tables {
		inv, invErr := sqlite.Inventory(ctx, db, table)
		if invErr != nil {
			return "", fmt.Errorf("读取表 '%s' 结构失败: %w", table, invErr)
		}
		pk := inv.DeclaredPrimaryKey()
		if pk == "" {
			pk = "None"
		}
		lines = append(lines, fmt.Sprintf("\nTable: %s", table))
		lines = append(lines, fmt.Sprintf("  - Primary Key: %s", pk))
		lines = append(lines, fmt.Sprintf("  - Columns: %s", strings.Join(inv.ColumnNames(), ", ")))
	}

	return strings.Join(lines, "\n"), nil
}

// summarizeCached 是 Summarize 的进程级缓存版本，按 "路径|修改时间" 键控。
// 缓存随扫描自然累积，进程生命周期内有效，重扫时新键整体取代旧键。
func (c *Catalog) summarizeCached(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s|%d", path, info.ModTime().UnixNano())
	if cached, ok := c.summaries.Get(key); ok {
		return cached.(string), nil
	}

	text, err := Summarize(ctx, path)
	if err != nil {
		return "", err
	}
	c.summaries.Set(key, text, 0)
	return text, nil
}

// AnalyzeFolder 为整个目录生成结构转储 (explicit analyze 操作)。
// 读不出结构的文件以错误文本内联呈现，不中断其余文件。
func (c *Catalog) AnalyzeFolder(ctx context.Context, folder string) (string, error) {
	files, err := c.DiscoverFiles(folder)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "No database files found in folder.", nil
	}

	var parts []string
	for _, f := range files {
		text, sumErr := c.summarizeCached(ctx, f.Path)
		if sumErr != nil {
			parts = append(parts, fmt.Sprintf("Error analyzing database structure: %v", sumErr))
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}
