// file: internal/transport/http/router/router_test.go
package router

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/adapter/datasource/sqlite"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/catalog"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/picker"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/taxonomy"
)

// stubAssistant 是测试用的语言模型服务替身。
type stubAssistant struct {
	up     bool
	models []string
	output string
}

func (s *stubAssistant) Available(context.Context) bool { return s.up }

func (s *stubAssistant) Models(context.Context) ([]string, error) {
	if !s.up {
		return nil, port.ErrAssistantDown
	}
	return s.models, nil
}

func (s *stubAssistant) Generate(_ context.Context, _, _ string, out io.Writer) error {
	_, err := io.WriteString(out, s.output)
	return err
}

func newTestRouter(t *testing.T, ai port.Assistant) (http.Handler, *catalog.Catalog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	categories := taxonomy.MustLoad()
	cat := catalog.New()
	t.Cleanup(cat.Close)

	handler := New(Dependencies{
		Catalog:      cat,
		Mapper:       taxonomy.NewMapper(categories),
		Executor:     sqlite.NewExecutor(sqlite.NewTableResolver(categories), cat),
		Assistant:    ai,
		Picker:       picker.New(),
		DefaultModel: "qwen2.5:7b",
	})
	return handler, cat
}

func writeSurveyFile(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	// 绕过 gzip 响应，断言直接读响应体
	req.Header.Set("Accept-Encoding", "identity")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), "响应体不是 JSON: %s", w.Body.String())
	return payload
}

func TestHealth(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScan_ReturnsDiscoveredFiles(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"), `CREATE TABLE GeoArea (CODE TEXT)`)

	handler, cat := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/scan", map[string]string{"path": dir})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeBody(t, w)
	files := payload["files"].([]any)
	require.Len(t, files, 1)
	first := files[0].(map[string]any)
	assert.Equal(t, "Sample.ta", first["name"])
	assert.Equal(t, "Points", first["category"])

	// 扫描后快照立即可用
	assert.Len(t, cat.Stores(), 1)
}

func TestScan_MissingPath(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{})

	w := doJSON(t, handler, http.MethodPost, "/api/scan", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/api/scan", map[string]string{"path": "/no/such/dir"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScan_BlankPathRejectedByValidation(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{})

	// 仅由引号和空白组成的路径在绑定阶段即被拒绝
	for _, path := range []string{"   ", `""`, `' '`} {
		w := doJSON(t, handler, http.MethodPost, "/api/scan", map[string]string{"path": path})
		assert.Equal(t, http.StatusBadRequest, w.Code, "path=%q", path)
	}
}

func TestScanGeological(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"), `CREATE TABLE GeoArea (CODE TEXT)`)

	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/scan-geological", map[string]string{"path": dir})
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeBody(t, w)
	samples := payload["样品"].(map[string]any)
	assert.Equal(t, "🧪", samples["icon"])
	assert.Len(t, samples["items"].([]any), 1)
}

func TestData_EmptyTableStillHasColumnsAndPrimaryKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.ta")
	writeSurveyFile(t, path,
		`CREATE TABLE GeoArea (GeoID INTEGER PRIMARY KEY, CODE TEXT)`)

	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/data", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeBody(t, w)
	assert.Equal(t, "GeoArea", payload["tableName"])
	assert.Equal(t, "GeoID", payload["primaryKey"], "空表的主键解析路径与有数据时一致")
	assert.Empty(t, payload["rows"])
	// 字段映射命中后展示列被过滤为映射中存在的列
	assert.Equal(t, []any{"CODE"}, payload["columns"])
	mapping := payload["columnMapping"].(map[string]any)
	assert.Equal(t, "样品编号", mapping["CODE"])
}

func TestData_SkipsSystemTableAsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Note.db")
	writeSurveyFile(t, path,
		`CREATE TABLE android_metadata (locale TEXT)`,
		`CREATE TABLE GPOINT (GeoID INTEGER PRIMARY KEY, NOTE TEXT)`,
		`INSERT INTO GPOINT VALUES (1, 'x')`)

	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/data", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeBody(t, w)
	assert.Equal(t, "GPOINT", payload["tableName"], "未指定表时跳过系统表")
	assert.Len(t, payload["rows"].([]any), 1)
	allTables := payload["allTables"].([]any)
	assert.Contains(t, allTables, "android_metadata", "allTables 仍然完整列出")
}

func TestUpdate_MissingFields(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/update", map[string]any{"path": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdate_ByDetectedPrimaryKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.ta")
	writeSurveyFile(t, path,
		`CREATE TABLE GeoArea (GeoID INTEGER PRIMARY KEY, CODE TEXT)`,
		`INSERT INTO GeoArea VALUES (1, 'old')`)

	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/update", map[string]any{
		"path":      path,
		"tableName": "GeoArea",
		"id":        1,
		"updates":   map[string]any{"CODE": "new"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeBody(t, w)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "GeoID", payload["primaryKeyUsed"])
}

func TestFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Note.db")
	writeSurveyFile(t, path,
		`CREATE TABLE android_metadata (locale TEXT)`,
		`CREATE TABLE GPOINT (GeoID INTEGER PRIMARY KEY)`)

	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/file-info", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeBody(t, w)
	assert.Equal(t, "Note.db", payload["fileName"])
	assert.Equal(t, []any{"GPOINT"}, payload["tables"], "系统表被排除")
}

func TestAnalyzeStructure_PlainText(t *testing.T) {
	dir := t.TempDir()
	writeSurveyFile(t, filepath.Join(dir, "Sample.ta"), `CREATE TABLE GeoArea (CODE TEXT)`)

	handler, _ := newTestRouter(t, &stubAssistant{})
	w := doJSON(t, handler, http.MethodPost, "/api/analyze-structure", map[string]string{"path": dir})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Database File: Sample.ta")
}

func TestSelectFolder(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{})

	dir := t.TempDir()
	w := doJSON(t, handler, http.MethodPost, "/api/select-folder", map[string]string{"path": dir})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dir, decodeBody(t, w)["path"])

	// 无效候选路径视为取消
	w = doJSON(t, handler, http.MethodPost, "/api/select-folder", map[string]string{"path": "/no/such"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody(t, w)["path"])
}

func TestOllamaStatusAndModels(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{up: true, models: []string{"qwen2.5:7b"}})

	w := doJSON(t, handler, http.MethodGet, "/api/ollama/status", nil)
	assert.Equal(t, true, decodeBody(t, w)["available"])

	w = doJSON(t, handler, http.MethodGet, "/api/ollama/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"qwen2.5:7b"}, decodeBody(t, w)["models"])
}

func TestOllamaModels_Down(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{up: false})
	w := doJSON(t, handler, http.MethodGet, "/api/ollama/models", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOllamaQuery_StreamsPlainText(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{up: true, output: `[{"type":"SEARCH","table":"GeoArea"}]`})

	w := doJSON(t, handler, http.MethodPost, "/api/ollama/query", map[string]any{
		"prompt": "查所有样品",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, `[{"type":"SEARCH","table":"GeoArea"}]`, w.Body.String())
}

func TestOllamaQuery_ServiceDown(t *testing.T) {
	handler, _ := newTestRouter(t, &stubAssistant{up: false})
	w := doJSON(t, handler, http.MethodPost, "/api/ollama/query", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOllamaExecute(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.ta")
	writeSurveyFile(t, path,
		`CREATE TABLE GeoArea (GeoID INTEGER PRIMARY KEY, CODE TEXT)`,
		`INSERT INTO GeoArea VALUES (1, 'old')`)

	handler, _ := newTestRouter(t, &stubAssistant{})

	// 缺 actions → 400
	w := doJSON(t, handler, http.MethodPost, "/api/ollama/execute", map[string]any{"filePath": path})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/api/ollama/execute", map[string]any{
		"filePath": path,
		"actions": []map[string]any{
			{"type": "UPDATE", "table": "GeoArea", "id": 1, "data": map[string]any{"CODE": "new"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeBody(t, w)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(1), payload["count"])
	assert.NotEmpty(t, payload["debug"])
}
