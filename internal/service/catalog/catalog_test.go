// Package catalog file: internal/service/catalog/catalog_test.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSurveyFile(t *testing.T, path string, stmts ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestCategoryForFile(t *testing.T) {
	assert.Equal(t, "Points", CategoryForFile("Gpoint.ta"))
	assert.Equal(t, "Lines", CategoryForFile("Boundary.LA"))
	assert.Equal(t, "Polygons", CategoryForFile("Area.pa"))
	assert.Equal(t, "Notes", CategoryForFile("Note.db"))
	assert.Equal(t, "Other", CategoryForFile("readme.txt"))
}

func TestDiscoverFiles_RecursiveWithRelativeNames(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"), `CREATE TABLE GeoArea (CODE TEXT)`)
	writeSurveyFile(t, filepath.Join(dir, "sub", "Note.db"), `CREATE TABLE GPOINT (GeoID INTEGER PRIMARY KEY)`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	c := New()
	defer c.Close()

	files, err := c.DiscoverFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	assert.Contains(t, names, "Sample.ta")
	assert.Contains(t, names, "sub/Note.db", "子目录文件用斜杠相对路径命名")
}

func TestDiscoverFiles_MissingFolder(t *testing.T) {
	c := New()
	defer c.Close()

	_, err := c.DiscoverFiles("/no/such/folder")
	assert.Error(t, err)
}

func TestScan_BuildsSnapshotAndSchemaText(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"),
		`CREATE TABLE GeoArea (GeoID INTEGER PRIMARY KEY, CODE TEXT)`)
	writeSurveyFile(t, filepath.Join(dir, "Note.db"),
		`CREATE TABLE GPOINT (GEOPOINT TEXT, NOTE TEXT)`)

	c := New()
	defer c.Close()

	snap, err := c.Scan(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, snap.Files, 2)
	assert.Empty(t, snap.Errors)
	assert.Same(t, snap, c.Current(), "扫描结果整体换入为当前快照")

	text := c.SchemaText()
	assert.Contains(t, text, "Database File: Sample.ta")
	assert.Contains(t, text, "Total Tables: 1")
	assert.Contains(t, text, "Table: GeoArea")
	assert.Contains(t, text, "  - Primary Key: GeoID")
	assert.Contains(t, text, "  - Columns: GeoID, CODE")
	assert.Contains(t, text, "Database File: Note.db")
	assert.Contains(t, text, "  - Primary Key: None")
}

func TestScan_SecondScanSupersedesSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"), `CREATE TABLE GeoArea (CODE TEXT)`)

	c := New()
	defer c.Close()
	ctx := context.Background()

	old, err := c.Scan(ctx, dir)
	require.NoError(t, err)
	require.Len(t, old.Files, 1)
	oldText := old.SchemaText

	// 目录内容变化后重扫：新快照整体换入，旧快照的持有者看到的内容不变
	writeSurveyFile(t, filepath.Join(dir, "Note.db"), `CREATE TABLE GPOINT (GEOPOINT TEXT)`)

	fresh, err := c.Scan(ctx, dir)
	require.NoError(t, err)
	require.NotSame(t, old, fresh)

	assert.Len(t, old.Files, 1)
	assert.Equal(t, oldText, old.SchemaText)
	assert.NotContains(t, old.SchemaText, "Note.db")

	assert.Same(t, fresh, c.Current())
	assert.Len(t, c.Stores(), 2)
	assert.Contains(t, c.SchemaText(), "Database File: Note.db")

	// 文件删除同样在下一次扫描中生效
	require.NoError(t, os.Remove(filepath.Join(dir, "Sample.ta")))
	third, err := c.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, third.Files, 1)
	assert.Equal(t, "Note.db", third.Files[0].Name)
	assert.Len(t, fresh.Files, 2, "中间快照不被后续扫描改写")
}

func TestScan_BrokenFileIsContained(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Good.ta"), `CREATE TABLE GeoArea (CODE TEXT)`)
	// 扩展名是数据文件，内容却不是 SQLite 容器
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.db"), []byte("not a database"), 0o644))

	c := New()
	defer c.Close()

	snap, err := c.Scan(context.Background(), dir)
	require.NoError(t, err, "单个文件损坏不中断整体扫描")

	assert.Len(t, snap.Files, 2, "损坏文件仍被发现并列出")
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "Broken.db")
	assert.Contains(t, snap.SchemaText, "Good.ta")
	assert.NotContains(t, snap.SchemaText, "Broken.db")
}

func TestSchemaText_DefaultBeforeScan(t *testing.T) {
	c := New()
	defer c.Close()

	assert.Equal(t, "No database loaded.", c.SchemaText())
	assert.Nil(t, c.Stores())
	assert.Nil(t, c.Current())
}

func TestAnalyzeFolder(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"),
		`CREATE TABLE GeoArea (CODE TEXT)`)

	c := New()
	defer c.Close()

	text, err := c.AnalyzeFolder(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, text, "Database File: Sample.ta")

	empty := t.TempDir()
	text, err = c.AnalyzeFolder(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, "No database files found in folder.", text)
}

func TestSummarizeCached_ReusesUntilFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.ta")
	writeSurveyFile(t, path, `CREATE TABLE GeoArea (CODE TEXT)`)

	c := New()
	defer c.Close()
	ctx := context.Background()

	first, err := c.summarizeCached(ctx, path)
	require.NoError(t, err)
	again, err := c.summarizeCached(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, c.summaries.ItemCount(), "同一修改时间只产生一个缓存键")
}
