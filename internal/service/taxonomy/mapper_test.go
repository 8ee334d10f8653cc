// Package taxonomy file: internal/service/taxonomy/mapper_test.go
package taxonomy

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
)

func newSurveyFile(t *testing.T, dir, name string, stmts ...string) domain.DataStore {
	t.Helper()
	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return domain.DataStore{Name: name, Path: path}
}

func TestClassify_SampleAndNoteScenario(t *testing.T) {
	dir := t.TempDir()
	sample := newSurveyFile(t, dir, "Sample.ta",
		`CREATE TABLE GeoArea (CODE TEXT, TYPE TEXT)`)
	note := newSurveyFile(t, dir, "Note.db",
		`CREATE TABLE GPOINT (GEOPOINT TEXT, "DESC" TEXT)`)

	m := NewMapper(MustLoad())
	result := m.Classify(context.Background(), []domain.DataStore{sample, note})

	samples := result["样品"]
	require.Len(t, samples.Items, 1)
	assert.Equal(t, "GeoArea", samples.Items[0].TableName)
	assert.Equal(t, sample.Path, samples.Items[0].FilePath)
	assert.Equal(t, "🧪", samples.Icon)
	assert.Equal(t, "Samples", samples.EnName)

	points := result["地质点"]
	require.Len(t, points.Items, 1)
	assert.Equal(t, "GPOINT", points.Items[0].TableName)
	assert.Equal(t, note.Path, points.Items[0].FilePath)

	// 没有命中的分类返回空列表而不是缺键
	assert.NotNil(t, result["照片"].Items)
	assert.Empty(t, result["照片"].Items)
}

func TestClassify_SkipsFileWithoutTable(t *testing.T) {
	dir := t.TempDir()
	// 文件名命中 Sample.ta 规则，但没有 GeoArea 表
	decoy := newSurveyFile(t, dir, "Sample.ta",
		`CREATE TABLE OTHER (X TEXT)`)

	m := NewMapper(MustLoad())
	result := m.Classify(context.Background(), []domain.DataStore{decoy})
	assert.Empty(t, result["样品"].Items)
}

func TestClassify_DeduplicatesWithinCategory(t *testing.T) {
	dir := t.TempDir()
	file := newSurveyFile(t, dir, "Note.db",
		`CREATE TABLE GPOINT (GEOPOINT TEXT)`)

	// 同一分类下两条规则都命中同一 (文件, 表)，先命中者胜出
	categories := []domain.Category{{
		Key: "测试",
		Rules: []domain.CategoryRule{
			{FilePattern: "*.db", Table: "GPOINT", Description: "第一条"},
			{FilePattern: "Note.db", Table: "GPOINT", Description: "第二条"},
		},
	}}

	m := NewMapper(categories)
	result := m.Classify(context.Background(), []domain.DataStore{file})
	require.Len(t, result["测试"].Items, 1)
	assert.Equal(t, "第一条", result["测试"].Items[0].Description)
}

func TestClassify_RequiredFieldsGate(t *testing.T) {
	dir := t.TempDir()
	file := newSurveyFile(t, dir, "Note.db",
		`CREATE TABLE GPOINT (GEOPOINT TEXT)`)

	categories := []domain.Category{{
		Key: "测试",
		Rules: []domain.CategoryRule{
			{FilePattern: "*.db", Table: "GPOINT", CheckFields: []string{"GEOPOINT", "MISSING"}},
		},
	}}

	m := NewMapper(categories)
	result := m.Classify(context.Background(), []domain.DataStore{file})
	assert.Empty(t, result["测试"].Items, "必需字段不齐的表不得入选")
}

func TestColumnProjection_FirstMatchingRuleWins(t *testing.T) {
	m := NewMapper(MustLoad())

	mapping := m.ColumnProjection("Sample.ta", "GeoArea")
	assert.Equal(t, "样品编号", mapping["CODE"])
	assert.Equal(t, "路线号", mapping["ROUTECODE"])

	// 表名对不上时返回空映射
	assert.Empty(t, m.ColumnProjection("Sample.ta", "GPOINT"))
}

func TestProjectedColumns_PreservesDeclarationOrder(t *testing.T) {
	m := NewMapper(MustLoad())

	cols := m.ProjectedColumns("Sample.ta", "GeoArea")
	require.NotEmpty(t, cols)
	assert.Equal(t, "ROUTECODE", cols[0].Column)
	assert.Equal(t, "GEOPOINT", cols[1].Column)
	assert.Equal(t, "CODE", cols[2].Column)
}

func TestMappingText_RendersDictionary(t *testing.T) {
	m := NewMapper(MustLoad())
	text := m.MappingText()

	assert.Contains(t, text, "### 样品 (Samples)")
	assert.Contains(t, text, "- 表名: GeoArea (对应文件: Sample.ta) | 说明: 样品采集点")
	assert.Contains(t, text, "CODE=样品编号")
}
