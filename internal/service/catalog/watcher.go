// Package catalog file: internal/service/catalog/watcher.go
package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watch (重新) 挂载文件系统监视器到最近扫描的目录。
// 调查文件被外部工具 (DGSS 桌面端) 改写后，其缓存摘要会被主动清除，
// 下一次扫描重新探测。挂载失败只降级为"无主动失效"，不影响扫描结果。
func (c *Catalog) watch(folder string) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if c.watcher != nil {
		_ = c.watcher.Close()
		c.watcher = nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("[Catalog] 创建文件监视器失败，摘要缓存仅按 mtime 失效", "error", err)
		return
	}
	c.watcher = watcher

	// 根目录与全部子目录都纳入监视
	_ = filepath.WalkDir(folder, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr == nil && d.IsDir() {
			if addErr := watcher.Add(p); addErr != nil {
				slog.Warn("[Catalog] 目录加入监视失败", "path", p, "error", addErr)
			}
		}
		return nil
	})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				c.handleFsEvent(event, watcher)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("[Catalog] 文件监视器报告错误", "error", watchErr)
			}
		}
	}()
}

// handleFsEvent 对单个事件做防抖处理后清理对应文件的缓存摘要。
func (c *Catalog) handleFsEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	cleanPath := filepath.Clean(event.Name)

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
			_ = watcher.Add(cleanPath)
			return
		}
	}

	if !isDataFile(cleanPath) {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if timer, ok := c.eventTimers[cleanPath]; ok {
		timer.Stop()
	}
	c.eventTimers[cleanPath] = time.AfterFunc(debounceDuration, func() {
		c.invalidateSummaries(cleanPath)
		c.timersMu.Lock()
		delete(c.eventTimers, cleanPath)
		c.timersMu.Unlock()
	})
}

// invalidateSummaries 删除某文件的所有缓存摘要 (任意 mtime 版本)。
func (c *Catalog) invalidateSummaries(path string) {
	prefix := path + "|"
	for key := range c.summaries.Items() {
		if strings.HasPrefix(key, prefix) {
			c.summaries.Delete(key)
		}
	}
	slog.Info("[Catalog] 文件已变更，摘要缓存失效", "path", path)
}

// Close 停止文件监视器，供进程收尾调用。
func (c *Catalog) Close() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watcher != nil {
		_ = c.watcher.Close()
		c.watcher = nil
	}
}
