// internal/service/assistant/prompt.go
package assistant

import (
	"fmt"
	"sort"
	"strings"
)

// PromptInput 汇集构造提示词所需的全部上下文片段。
type PromptInput struct {
	// SchemaText 是当前文件夹所有数据库的结构摘要
	SchemaText string
	// MappingText 是分类字典与字段中文释义
	MappingText string
	// ContextRows 是与当前路线/地质点关联的既有数据行 (可为空)
	ContextRows []map[string]any
	// Instruction 是用户输入的自然语言指令
	Instruction string
}

// BuildPrompt 组装发给模型的完整提示词。
// 结构分为角色设定、库结构、字典映射、数据上下文与硬性输出要求五段，
// 要求模型只输出 JSON 数组形式的动作列表。
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("[Role]\n")
	b.WriteString("你是野外地质调查数据库的智能操作助手。用户用自然语言描述需求，")
	b.WriteString("你负责把需求转换成对 SQLite 数据库的结构化操作指令。\n\n")

	b.WriteString("[Database Structure]\n")
	if strings.TrimSpace(in.SchemaText) != "" {
		b.WriteString(in.SchemaText)
	} else {
		b.WriteString("No database loaded.")
	}
	b.WriteString("\n\n")

	if strings.TrimSpace(in.MappingText) != "" {
		b.WriteString("[Dictionary & Field Mappings]\n")
		b.WriteString(in.MappingText)
		b.WriteString("\n\n")
	}

	if len(in.ContextRows) > 0 {
		b.WriteString("[Current Data Context]\n")
		b.WriteString("以下是与当前路线/地质点相关的既有记录，更新时优先匹配这些记录:\n")
		for _, row := range in.ContextRows {
			b.WriteString(formatContextRow(row))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("[User Instruction]\n")
	b.WriteString(in.Instruction)
	b.WriteString("\n\n")

	b.WriteString("[Requirement]\n")
	b.WriteString("1. 只输出一个 JSON 数组，不要有任何额外说明文字或 Markdown 代码块标记。\n")
	b.WriteString("2. 数组元素格式: {\"type\": \"SEARCH|UPDATE|INSERT\", \"table\": \"表名\", ...}。\n")
	b.WriteString("3. SEARCH 用 \"filter\" 给出查询条件 (键值对, 值 \"*\" 表示任意)。\n")
	b.WriteString("4. UPDATE 优先用 \"id\" 指定主键定位, 无法确定主键时用 \"filter\"; 修改内容放在 \"data\"。\n")
	b.WriteString("5. INSERT 把新记录字段放在 \"data\"。\n")
	b.WriteString("6. 表名尽量使用 [Database Structure] 中出现的真实表名。\n")
	b.WriteString("7. 用户要求查询时只生成 SEARCH; 未明确要求修改数据时不要生成 UPDATE/INSERT。\n")

	return b.String()
}

// formatContextRow 把一行上下文数据压成单行 `k=v; k=v` 文本。
// `_table` 键记录来源表，单独前置展示，不混入字段列表。
func formatContextRow(row map[string]any) string {
	if src, ok := row["_table"]; ok {
		trimmed := make(map[string]any, len(row)-1)
		for k, v := range row {
			if k != "_table" {
				trimmed[k] = v
			}
		}
		return fmt.Sprintf("- [%v] %s", src, joinRow(trimmed))
	}
	return "- " + joinRow(row)
}

func joinRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := row[k]
		if v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, s))
	}
	return strings.Join(parts, "; ")
}
