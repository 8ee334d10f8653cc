// Package taxonomy 负责地质分类字典的加载与匹配。
// internal/service/taxonomy/taxonomy.go
package taxonomy

import (
	_ "embed"
	"fmt"
	"path"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var rawCategories []byte

// Load 解析内嵌的分类字典。字典是随二进制发布的静态配置，运行期不可编辑。
func Load() ([]domain.Category, error) {
	var categories []domain.Category
	if err := yaml.Unmarshal(rawCategories, &categories); err != nil {
		return nil, fmt.Errorf("解析内嵌分类字典失败: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("内嵌分类字典为空")
	}
	for _, c := range categories {
		if c.Key == "" || len(c.Rules) == 0 {
			return nil, fmt.Errorf("分类字典中存在缺少 key 或规则的分类: %+v", c)
		}
		for _, r := range c.Rules {
			if r.FilePattern == "" || r.Table == "" {
				return nil, fmt.Errorf("分类 '%s' 中存在缺少 file_pattern 或 table 的规则", c.Key)
			}
		}
	}
	return categories, nil
}

// MustLoad 供启动路径使用，字典损坏属于构建错误。
func MustLoad() []domain.Category {
	categories, err := Load()
	if err != nil {
		panic(err)
	}
	return categories
}

// matchPattern 是全系统唯一的文件通配匹配语义：
// 含路径分隔符的模式与斜杠归一后的相对路径匹配，
// 纯文件名模式只与文件基名匹配。* 与 ? 为 shell 通配，大小写敏感。
func matchPattern(pattern, relPath, baseName string) bool {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	if strings.Contains(pattern, "/") {
		ok, err := path.Match(pattern, strings.ReplaceAll(relPath, "\\", "/"))
		return err == nil && ok
	}
	ok, err := path.Match(pattern, baseName)
	return err == nil && ok
}
