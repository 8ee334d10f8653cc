// Package catalog 负责调查数据目录的扫描与结构清单维护。
// internal/service/catalog/catalog.go
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"

	"github.com/fsnotify/fsnotify"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

// dataExtensions 是被识别为调查数据文件的扩展名集合 (全部为 SQLite 容器)。
var dataExtensions = []string{".ta", ".la", ".pa", ".db"}

// defaultSchemaText 是尚未扫描任何目录时提供给助手的占位结构摘要。
const defaultSchemaText = "No database loaded."

// Snapshot 是一次目录扫描的不可变产物。读者可在请求期间安全持有旧快照，
// 新扫描整体替换而非原地修改。
type Snapshot struct {
	Folder     string             `json:"folder"`
	Files      []domain.DataStore `json:"files"`
	SchemaText string             `json:"-"`
	Errors     []string           `json:"errors,omitempty"`
	ScannedAt  time.Time          `json:"scanned_at"`
}

// Catalog 维护当前目录快照与进程生命周期的结构摘要缓存。
// 快照通过原子指针整体换入；摘要缓存按 "路径|修改时间" 键控，
// 文件被外部改写后旧键自然失效，fsnotify 监视器再做主动清理。
type Catalog struct {
	snap      atomic.Pointer[Snapshot]
	summaries *gocache.Cache

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	eventTimers map[string]*time.Timer
	timersMu    sync.Mutex
}

// 断言 *Catalog 满足执行器依赖的只读视图接口，编译期校验
var _ port.StoreLister = (*Catalog)(nil)

const debounceDuration = 2 * time.Second

// New 创建一个空目录清单。
func New() *Catalog {
	return &Catalog{
		summaries:   gocache.New(gocache.NoExpiration, 0),
		eventTimers: make(map[string]*time.Timer),
	}
}

// CategoryForFile 按扩展名推断文件大类。
func CategoryForFile(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ta":
		return "Points"
	case ".la":
		return "Lines"
	case ".pa":
		return "Polygons"
	case ".db":
		return "Notes"
	}
	return "Other"
}

// isDataFile 判断文件是否为受支持的调查数据文件。
func isDataFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range dataExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DiscoverFiles 递归遍历目录，收集全部调查数据文件。只做发现，不打开容器。
func (c *Catalog) DiscoverFiles(folder string) ([]domain.DataStore, error) {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", port.ErrPathNotFound, folder)
	}

	var files []domain.DataStore
	err = filepath.WalkDir(folder, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// 不可读的子目录不终止整个发现过程
			return nil
		}
		if d.IsDir() || !isDataFile(d.Name()) {
			return nil
		}
		rel, relErr := filepath.Rel(folder, p)
		if relErr != nil {
			rel = d.Name()
		}
		files = append(files, domain.DataStore{
			Name:     filepath.ToSlash(rel),
			Category: CategoryForFile(d.Name()),
			Path:     p,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历目录 '%s' 失败: %w", folder, err)
	}
	return files, nil
}

// Scan 执行一次完整扫描：发现文件、并发生成每个文件的结构摘要、
// 原子换入新快照并 (重新) 挂载文件监视器。
// 单个文件打不开或读不出结构只计入快照的 Errors，绝不中断扫描。
func (c *Catalog) Scan(ctx context.Context, folder string) (*Snapshot, error) {
	files, err := c.DiscoverFiles(folder)
	if err != nil {
		return nil, err
	}

	summaries := make([]string, len(files))
	fileErrs := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			text, sumErr := c.summarizeCached(gctx, f.Path)
			if sumErr != nil {
				fileErrs[i] = fmt.Sprintf("%s: %v", f.Name, sumErr)
				return nil
			}
			summaries[i] = text
			return nil
		})
	}
	_ = g.Wait()

	var sb strings.Builder
	var errList []string
	for i := range files {
		if fileErrs[i] != "" {
			errList = append(errList, fileErrs[i])
			continue
		}
		sb.WriteString(summaries[i])
		sb.WriteString("\n\n")
	}

	snap := &Snapshot{
		Folder:     folder,
		Files:      files,
		SchemaText: sb.String(),
		Errors:     errList,
		ScannedAt:  time.Now(),
	}
	c.snap.Store(snap)
	c.watch(folder)
	return snap, nil
}

// Current 返回最近一次扫描的快照，从未扫描时返回 nil。
func (c *Catalog) Current() *Snapshot {
	return c.snap.Load()
}

// Stores 实现 port.StoreLister。
func (c *Catalog) Stores() []domain.DataStore {
	if snap := c.snap.Load(); snap != nil {
		return snap.Files
	}
	return nil
}

// SchemaText 实现 port.StoreLister。
func (c *Catalog) SchemaText() string {
	if snap := c.snap.Load(); snap != nil && snap.SchemaText != "" {
		return snap.SchemaText
	}
	return defaultSchemaText
}
