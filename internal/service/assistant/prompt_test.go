// Package assistant file: internal/service/assistant/prompt_test.go
package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_SectionOrder(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		SchemaText:  "Database File: Sample.ta",
		MappingText: "### 样品 (Samples)",
		ContextRows: []map[string]any{
			{"_table": "GPOINT", "GEOPOINT": "P1", "NOTE": "花岗岩"},
		},
		Instruction: "把 P1 的备注改成玄武岩",
	})

	sections := []string{
		"[Role]",
		"[Database Structure]",
		"[Dictionary & Field Mappings]",
		"[Current Data Context]",
		"[User Instruction]",
		"[Requirement]",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(prompt, s)
		assert.Greater(t, idx, last, "段落 %s 顺序错误或缺失", s)
		last = idx
	}

	assert.Contains(t, prompt, "Database File: Sample.ta")
	assert.Contains(t, prompt, "把 P1 的备注改成玄武岩")
	// 上下文行带来源表标记，键按字典序稳定输出
	assert.Contains(t, prompt, "- [GPOINT] GEOPOINT=P1; NOTE=花岗岩")
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Instruction: "查所有样品"})

	assert.Contains(t, prompt, "No database loaded.")
	assert.NotContains(t, prompt, "[Dictionary & Field Mappings]")
	assert.NotContains(t, prompt, "[Current Data Context]")
	assert.Contains(t, prompt, `"type": "SEARCH|UPDATE|INSERT"`)
}

func TestFormatContextRow_SkipsEmptyValues(t *testing.T) {
	line := formatContextRow(map[string]any{"A": "x", "B": nil, "C": "  "})
	assert.Equal(t, "- A=x", line)
}
