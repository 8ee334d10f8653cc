// Package domain file: internal/core/domain/actions.go
package domain

import "strings"

// ActionKind 是助手下发指令的种类。
type ActionKind string

const (
	ActionSearch ActionKind = "SEARCH"
	ActionUpdate ActionKind = "UPDATE"
	ActionInsert ActionKind = "INSERT"
)

// ActionDescriptor 是语言模型返回的一条指令。
// Table 可能不准确 (大小写错误、写成文件名、幻觉)，执行前必须经过解析修复。
// ID / Filter / Data 按指令种类取用：
//   - SEARCH: Filter
//   - UPDATE: ID+Data (按主键) 或 Filter+Data (按条件)
//   - INSERT: Data
type ActionDescriptor struct {
	Type   string         `json:"type"`
	Table  string         `json:"table"`
	ID     any            `json:"id,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Kind 返回规范化后的指令种类 (忽略大小写)。
func (a ActionDescriptor) Kind() ActionKind {
	return ActionKind(strings.ToUpper(strings.TrimSpace(a.Type)))
}

// ExecutionResult 是一个指令批次的执行结果：
// 受影响总行数、按序的审计日志、以及带来源标记的查询结果行。
type ExecutionResult struct {
	Count         int64            `json:"count"`
	Log           []string         `json:"debug"`
	SearchResults []map[string]any `json:"search_results"`
}
