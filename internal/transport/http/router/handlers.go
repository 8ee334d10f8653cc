// file: internal/transport/http/router/handlers.go
package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/adapter/datasource/sqlite"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/observe"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/assistant"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/catalog"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/picker"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/taxonomy"
)

// pathRequest 是所有只带一个路径参数的端点的公共请求体。
type pathRequest struct {
	Path string `json:"path" binding:"required,surveypath"`
}

// scanHandler 扫描文件夹，重建目录快照并返回发现的数据文件。
func scanHandler(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
			return
		}

		folder := picker.Normalize(req.Path)
		snap, err := cat.Scan(c.Request.Context(), folder)
		if err != nil {
			_ = c.Error(err)
			return
		}

		observe.TotalScans.Inc()
		c.JSON(http.StatusOK, gin.H{"files": snap.Files})
	}
}

// scanGeologicalHandler 按地质分类字典归类文件夹中的数据。
func scanGeologicalHandler(cat *catalog.Catalog, mapper *taxonomy.Mapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
			return
		}

		folder := picker.Normalize(req.Path)
		files, err := cat.DiscoverFiles(folder)
		if err != nil {
			_ = c.Error(err)
			return
		}

		result := mapper.Classify(c.Request.Context(), files)
		c.JSON(http.StatusOK, result)
	}
}

// dataRequest /api/data 的请求体，tableName 可省略。
type dataRequest struct {
	Path      string `json:"path" binding:"required,surveypath"`
	TableName string `json:"tableName"`
}

// dataHandler 读取一张表的数据与展示元信息 (列顺序、字段释义、主键)。
func dataHandler(mapper *taxonomy.Mapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
			return
		}

		path := picker.Normalize(req.Path)
		db, err := sqlite.Open(path)
		if err != nil {
			_ = c.Error(err)
			return
		}
		defer db.Close()

		ctx := c.Request.Context()
		tables, err := sqlite.Tables(ctx, db)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if len(tables) == 0 {
			c.JSON(http.StatusOK, gin.H{})
			return
		}

		target := pickTargetTable(tables, req.TableName)

		columns, rows, err := sqlite.SelectAll(ctx, db, target)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if rows == nil {
			rows = []map[string]any{}
		}

		// 字段中文释义只影响展示列的筛选与排序，行数据保留全部字段，
		// 前端仍可通过隐藏字段 (如 GeoID) 定位行
		columnMapping := mapper.ColumnProjection(filepath.Base(path), target)
		if len(columnMapping) > 0 {
			ordered := mapper.ProjectedColumns(filepath.Base(path), target)
			filtered := make([]string, 0, len(ordered))
			for _, fl := range ordered {
				for _, col := range columns {
					if col == fl.Column {
						filtered = append(filtered, col)
						break
					}
				}
			}
			if len(filtered) > 0 {
				columns = filtered
			}
		}

		// PRAGMA 返回的主键大小写可能与结果集列名不一致，向结果集对齐
		var primaryKey any
		if pk, err := sqlite.ResolvePrimaryKey(ctx, db, target); err == nil {
			primaryKey = reconcileCasing(pk, columns, rows)
		}

		c.JSON(http.StatusOK, gin.H{
			"columns":       columns,
			"rows":          rows,
			"tableName":     target,
			"allTables":     tables,
			"columnMapping": columnMapping,
			"primaryKey":    primaryKey,
		})
	}
}

// pickTargetTable 选定要展示的表：优先用请求指定的表，否则取第一张非系统表。
func pickTargetTable(tables []string, requested string) string {
	if requested != "" {
		for _, t := range tables {
			if t == requested {
				return t
			}
		}
	}
	for _, t := range tables {
		if !sqlite.IsSystemTable(t) {
			return t
		}
	}
	return tables[0]
}

// reconcileCasing 把主键名对齐到实际数据行 (或列清单) 的大小写。
func reconcileCasing(pk string, columns []string, rows []map[string]any) string {
	if pk == "" {
		return pk
	}
	if len(rows) > 0 {
		if _, ok := rows[0][pk]; ok {
			return pk
		}
		for col := range rows[0] {
			if strings.EqualFold(col, pk) {
				return col
			}
		}
		return pk
	}
	for _, col := range columns {
		if strings.EqualFold(col, pk) {
			return col
		}
	}
	return pk
}

// updateRequest /api/update 的请求体。
type updateRequest struct {
	Path      string         `json:"path"`
	TableName string         `json:"tableName"`
	ID        any            `json:"id"`
	Updates   map[string]any `json:"updates"`
}

// updateHandler 按自动识别的主键更新单行。
func updateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil ||
			req.Path == "" || req.TableName == "" || req.ID == nil || len(req.Updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}

		path := picker.Normalize(req.Path)
		pkUsed, _, err := sqlite.UpdateRowByKey(c.Request.Context(), path, req.TableName, req.ID, req.Updates)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "primaryKeyUsed": pkUsed})
	}
}

// analyzeStructureHandler 输出整个文件夹的结构摘要全文。
func analyzeStructureHandler(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
			return
		}

		folder := picker.Normalize(req.Path)
		text, err := cat.AnalyzeFolder(c.Request.Context(), folder)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.String(http.StatusOK, text)
	}
}

// fileInfoHandler 返回单个数据文件的用户表清单。
func fileInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
			return
		}

		path := picker.Normalize(req.Path)
		db, err := sqlite.Open(path)
		if err != nil {
			_ = c.Error(err)
			return
		}
		defer db.Close()

		tables, err := sqlite.UserTables(c.Request.Context(), db)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"fileName": filepath.Base(path),
			"filePath": path,
			"tables":   tables,
		})
	}
}

// pickRequest 选择端点的请求体，候选路径可为空 (视为取消)。
type pickRequest struct {
	Path string `json:"path"`
}

// selectFolderHandler 确认一个文件夹路径；失败或取消时 path 为 null。
func selectFolderHandler(p port.FolderPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pickRequest
		_ = c.ShouldBindJSON(&req)

		path, err := p.PickFolder(c.Request.Context(), req.Path)
		if err != nil || path == "" {
			c.JSON(http.StatusOK, gin.H{"path": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": path})
	}
}

// selectFileHandler 确认一个数据文件路径；失败或取消时 path 为 null。
func selectFileHandler(p port.FolderPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pickRequest
		_ = c.ShouldBindJSON(&req)

		path, err := p.PickFile(c.Request.Context(), req.Path)
		if err != nil || path == "" {
			c.JSON(http.StatusOK, gin.H{"path": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": path})
	}
}

// ollamaStatusHandler 探测语言模型服务是否在线。
func ollamaStatusHandler(a port.Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"available": a.Available(c.Request.Context())})
	}
}

// ollamaModelsHandler 列举可用模型。
func ollamaModelsHandler(a port.Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		models, err := a.Models(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ollama service is not running"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"models": models})
	}
}

// queryRequest /api/ollama/query 的请求体。
type queryRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt" binding:"required"`
	Context struct {
		FilePath  string `json:"filePath"`
		RouteCode string `json:"routeCode"`
		GeoPoint  string `json:"geoPoint"`
	} `json:"context"`
}

// ollamaQueryHandler 组装提示词并把模型输出按 token 流式转发给前端。
func ollamaQueryHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		ctx := c.Request.Context()
		if !deps.Assistant.Available(ctx) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ollama service is not running"})
			return
		}

		model := req.Model
		if model == "" {
			model = deps.DefaultModel
		}

		prompt := assistant.BuildPrompt(assistant.PromptInput{
			SchemaText:  deps.Catalog.SchemaText(),
			MappingText: deps.Mapper.MappingText(),
			ContextRows: collectContextRows(c, req),
			Instruction: req.Prompt,
		})

		observe.AssistantReq.Inc()
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Status(http.StatusOK)

		if err := deps.Assistant.Generate(ctx, model, prompt, c.Writer); err != nil {
			// 响应头已发出，错误只能写进流里
			slog.Error("流式生成中断", "model", model, "error", err)
			_, _ = io.WriteString(c.Writer, "Error streaming: "+err.Error())
		}
	}
}

// collectContextRows 按路线号/地质点号收集数据上下文并压平为带来源标记的行。
func collectContextRows(c *gin.Context, req queryRequest) []map[string]any {
	if req.Context.FilePath == "" {
		return nil
	}

	path := picker.Normalize(req.Context.FilePath)
	byTable, err := sqlite.ContextRows(c.Request.Context(), path, req.Context.RouteCode, req.Context.GeoPoint)
	if err != nil {
		slog.Warn("收集数据上下文失败", "path", path, "error", err)
		return nil
	}

	tables := make([]string, 0, len(byTable))
	for t := range byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var flat []map[string]any
	for _, table := range tables {
		for _, row := range byTable[table] {
			tagged := make(map[string]any, len(row)+1)
			for k, v := range row {
				tagged[k] = v
			}
			tagged["_table"] = table
			flat = append(flat, tagged)
		}
	}
	return flat
}

// executeRequest /api/ollama/execute 的请求体。
type executeRequest struct {
	Actions  []domain.ActionDescriptor `json:"actions"`
	FilePath string                    `json:"filePath"`
}

// ollamaExecuteHandler 执行助手生成的动作批次。
func ollamaExecuteHandler(exec *sqlite.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req executeRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Actions) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing actions"})
			return
		}

		filePath := picker.Normalize(req.FilePath)
		slog.Info("执行动作批次",
			"request_id", c.GetString("request_id"),
			"actions", len(req.Actions),
			"file", filePath)
		result, err := exec.Execute(c.Request.Context(), req.Actions, filePath)
		if err != nil {
			observe.FailActions.Inc()
			var debug []string
			if result != nil {
				debug = result.Log
			}
			status := http.StatusInternalServerError
			if errors.Is(err, port.ErrFileNotFound) || errors.Is(err, port.ErrPathNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error(), "debug": debug})
			return
		}

		observe.TotalActions.Add(float64(len(req.Actions)))
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"count":          result.Count,
			"debug":          result.Log,
			"search_results": result.SearchResults,
		})
	}
}
