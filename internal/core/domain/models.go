// Package domain file: internal/core/domain/models.go
package domain

// DataStore 表示扫描过程中发现的一个调查数据文件 (SQLite 容器)。
type DataStore struct {
	// Name 是相对于扫描根目录的显示名 (子目录下的文件带相对路径)
	Name string `json:"name"`
	// Category 是按扩展名推断的文件大类 (Points / Lines / Polygons / Notes / Other)
	Category string `json:"category"`
	// Path 是文件的绝对路径
	Path string `json:"path"`
}

// ColumnInfo 对应 PRAGMA table_info 返回的一行列元数据。
type ColumnInfo struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	NotNull   bool   `json:"not_null"`
	IsPrimary bool   `json:"is_primary"`
}

// TableInventory 是单个表的列清单，按声明顺序排列。
// 每次操作按需构建，不做跨请求缓存：文件可能被外部工具随时改写。
type TableInventory struct {
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnNames 按声明顺序返回所有列名。
func (t TableInventory) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// DeclaredPrimaryKey 返回容器元数据中正式声明的主键列名，未声明时返回空串。
func (t TableInventory) DeclaredPrimaryKey() string {
	for _, c := range t.Columns {
		if c.IsPrimary {
			return c.Name
		}
	}
	return ""
}

// FieldLabel 是 "列名 → 人类可读标签" 映射中的一项。
// 用切片而不是 map 来保留字典里的声明顺序，界面按此顺序展示列。
type FieldLabel struct {
	Column string `yaml:"column" json:"column"`
	Label  string `yaml:"label" json:"label"`
}

// CategoryRule 是地质分类字典中的一条声明式规则：
// 文件名通配 + 目标表 + 可选的必需字段集 + 可选的行过滤 + 字段标签映射。
// 规则是不可变的静态配置，匹配过程绝不修改规则本身。
type CategoryRule struct {
	FilePattern string       `yaml:"file_pattern" json:"filePattern"`
	Table       string       `yaml:"table" json:"table"`
	Description string       `yaml:"description" json:"description"`
	RowFilter   string       `yaml:"row_filter,omitempty" json:"rowFilter,omitempty"`
	CheckFields []string     `yaml:"check_fields,omitempty" json:"checkFields,omitempty"`
	Fields      []FieldLabel `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// FieldMap 将字段标签列表转为 map 形式 (列名 → 标签)。
func (r CategoryRule) FieldMap() map[string]string {
	if len(r.Fields) == 0 {
		return map[string]string{}
	}
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Column] = f.Label
	}
	return m
}

// Category 是一个命名的分类桶 (如 "样品")，把分散在不同文件/表中的
// 同类记录归拢到一起。Key 为中文名，EnName 为英文名。
type Category struct {
	Key    string         `yaml:"key" json:"key"`
	Icon   string         `yaml:"icon" json:"icon"`
	EnName string         `yaml:"en_name" json:"en_name"`
	Rules  []CategoryRule `yaml:"rules" json:"rules"`
}

// MatchedItem 是一条规则命中一个文件后的产物，按 (文件路径, 表名) 去重。
type MatchedItem struct {
	FileName    string `json:"fileName"`
	TableName   string `json:"tableName"`
	FilePath    string `json:"filePath"`
	Description string `json:"description"`
	RowFilter   string `json:"rowFilter,omitempty"`
}

// CategoryResult 是 /api/scan-geological 中单个分类的聚合结果。
type CategoryResult struct {
	Icon   string        `json:"icon"`
	EnName string        `json:"en_name"`
	Items  []MatchedItem `json:"items"`
}
