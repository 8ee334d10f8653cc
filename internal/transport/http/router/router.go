// file: internal/transport/http/router/router.go
package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/adapter/datasource/sqlite"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/observe"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/catalog"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/service/taxonomy"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/transport/http/middleware"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Catalog      *catalog.Catalog
	Mapper       *taxonomy.Mapper
	Executor     *sqlite.Executor
	Assistant    port.Assistant
	Picker       port.FolderPicker
	Limiter      *middleware.IPRateLimiter
	DefaultModel string
}

// New 创建并配置一个全新的、基于 Gin 的 HTTP 路由器
func New(deps Dependencies) http.Handler {
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery())

	// --- 配置全局中间件 ---
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if deps.Limiter != nil {
		router.Use(deps.Limiter.Middleware())
	}
	router.Use(middleware.ErrorHandlingMiddleware())

	// --- 运维端点 ---
	router.GET("/metrics", gin.WrapH(observe.Handler()))
	router.GET("/api/health", healthHandler())

	// --- 静态前端 (存在时才挂载) ---
	if home := filepath.Join("static", "index.html"); fileExists(home) {
		router.StaticFile("/", home)
		router.Static("/static", "static")
	}

	// --- 数据平面 (Data Plane) ---
	api := router.Group("/api")
	{
		api.POST("/scan", scanHandler(deps.Catalog))
		api.POST("/scan-geological", scanGeologicalHandler(deps.Catalog, deps.Mapper))
		api.POST("/data", dataHandler(deps.Mapper))
		api.POST("/update", updateHandler())
		api.POST("/analyze-structure", analyzeStructureHandler(deps.Catalog))
		api.POST("/file-info", fileInfoHandler())
		api.POST("/select-folder", selectFolderHandler(deps.Picker))
		api.POST("/select-file", selectFileHandler(deps.Picker))

		// --- 智能助手平面 (Assistant Plane) ---
		ollama := api.Group("/ollama")
		{
			ollama.GET("/status", ollamaStatusHandler(deps.Assistant))
			ollama.GET("/models", ollamaModelsHandler(deps.Assistant))
			ollama.POST("/query", ollamaQueryHandler(deps))
			ollama.POST("/execute", ollamaExecuteHandler(deps.Executor))
		}
	}

	return router
}

// healthHandler 提供存活探针。
func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// registerValidations 在 gin 的校验引擎上注册自定义规则。重复注册是幂等的。
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	// surveypath: 去掉包裹引号与空白后必须非空，且不含 NUL 字节
	_ = v.RegisterValidation("surveypath", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.ContainsRune(s, 0) {
			return false
		}
		return strings.TrimSpace(strings.Trim(s, `"'`)) != ""
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
