// Package sqlite file: internal/adapter/datasource/sqlite/helpers.go
//
// 动态 SQL 构建器。表名与列名可能来自请求体或模型输出，属于不可信标识符：
// 所有标识符必须先对照实际探测到的列清单校验并归一大小写，才允许进入语句；
// 所有值一律走 ? 参数绑定，绝不拼接。
package sqlite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
)

// searchRowLimit 限定 SEARCH 在单个文件内返回的行数，约束聚合响应体积。
const searchRowLimit = 20

// isWildcard 判断过滤值是否为通配 '*' (视为"匹配任意"，整个条件被丢弃)。
func isWildcard(v any) bool {
	return strings.TrimSpace(fmt.Sprintf("%v", v)) == "*"
}

// splitWildcardFilter 把过滤 map 拆成有效条件与被通配符剔除的键。
// 剔除键按字典序返回，方便审计日志输出稳定。
func splitWildcardFilter(filter map[string]any) (map[string]any, []string) {
	kept := make(map[string]any, len(filter))
	var elided []string
	for k, v := range filter {
		if isWildcard(v) {
			elided = append(elided, k)
			continue
		}
		kept[k] = v
	}
	sort.Strings(elided)
	return kept, elided
}

// canonicalOrErr 校验列确实存在于清单中，并返回其规范大小写写法。
func canonicalOrErr(inv domain.TableInventory, col string) (string, error) {
	canonical, ok := CanonicalColumn(inv, col)
	if !ok {
		return "", fmt.Errorf("%w: 表 '%s' 中没有列 '%s'", port.ErrUnknownColumn, inv.Table, col)
	}
	return canonical, nil
}

// sortedKeys 返回 map 的键按字典序排列，保证生成的 SQL 稳定可测。
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escapeLike 转义 LIKE 模式中的特殊字符。
func escapeLike(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `%`, `\%`)
	v = strings.ReplaceAll(v, `_`, `\_`)
	return v
}

// buildSearchSQL 为单个文件构建 SEARCH 查询。
// 过滤条件按"包含" (LIKE %v%) 语义逐字段 AND 连接，调用方需先剔除通配条件。
func buildSearchSQL(inv domain.TableInventory, filter map[string]any) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT * FROM %q", inv.Table))

	args := make([]any, 0, len(filter))
	if len(filter) > 0 {
		var conditions []string
		for _, k := range sortedKeys(filter) {
			canonical, err := canonicalOrErr(inv, k)
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, fmt.Sprintf(`%q LIKE ? ESCAPE '\'`, canonical))
			args = append(args, "%"+escapeLike(fmt.Sprintf("%v", filter[k]))+"%")
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	sb.WriteString(fmt.Sprintf(" LIMIT %d", searchRowLimit))
	return sb.String(), args, nil
}

// buildSetClause 构建 UPDATE 的 SET 段，校验并归一每个待写列。
func buildSetClause(inv domain.TableInventory, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("UPDATE 操作需要提供更新数据")
	}
	var clauses []string
	var args []any
	for _, k := range sortedKeys(data) {
		canonical, err := canonicalOrErr(inv, k)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, fmt.Sprintf("%q = ?", canonical))
		args = append(args, data[k])
	}
	return strings.Join(clauses, ", "), args, nil
}

// buildUpdateByKeySQL 构建按主键定位单行的 UPDATE。
func buildUpdateByKeySQL(inv domain.TableInventory, data map[string]any, keyCol string, keyValue any) (string, []any, error) {
	setClause, args, err := buildSetClause(inv, data)
	if err != nil {
		return "", nil, err
	}
	canonicalKey, err := canonicalOrErr(inv, keyCol)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("UPDATE %q SET %s WHERE %q = ?", inv.Table, setClause, canonicalKey)
	return query, append(args, keyValue), nil
}

// buildUpdateByFilterSQL 构建按等值条件批量 UPDATE。
// 空过滤 (显式 {} 或全部条件被通配剔除) 意为"更新整表"，
// 返回 hasWhere=false 让调用方在审计日志中明确区分这一不可逆决定。
func buildUpdateByFilterSQL(inv domain.TableInventory, data map[string]any, filter map[string]any) (string, []any, bool, error) {
	setClause, args, err := buildSetClause(inv, data)
	if err != nil {
		return "", nil, false, err
	}

	if len(filter) == 0 {
		return fmt.Sprintf("UPDATE %q SET %s", inv.Table, setClause), args, false, nil
	}

	var conditions []string
	for _, k := range sortedKeys(filter) {
		canonical, err := canonicalOrErr(inv, k)
		if err != nil {
			return "", nil, false, err
		}
		conditions = append(conditions, fmt.Sprintf("%q = ?", canonical))
		args = append(args, filter[k])
	}
	query := fmt.Sprintf("UPDATE %q SET %s WHERE %s", inv.Table, setClause, strings.Join(conditions, " AND "))
	return query, args, true, nil
}

// buildInsertSQL 构建单行 INSERT，列集完全以提交的数据为准，不做默认值补齐。
func buildInsertSQL(inv domain.TableInventory, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("INSERT 操作需要提供数据")
	}
	var cols, placeholders []string
	var args []any
	for _, k := range sortedKeys(data) {
		canonical, err := canonicalOrErr(inv, k)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, fmt.Sprintf("%q", canonical))
		placeholders = append(placeholders, "?")
		args = append(args, data[k])
	}
	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		inv.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

// convertKeyType 在按主键 UPDATE 影响 0 行时做一次类型转换重试:
// 字符串形式的纯数字转为整数，数值转为字符串。无法转换时返回 false。
func convertKeyType(id any) (any, bool) {
	switch v := id.(type) {
	case string:
		if v == "" {
			return nil, false
		}
		for _, r := range v {
			if r < '0' || r > '9' {
				return nil, false
			}
		}
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return nil, false
		}
		return n, true
	case float64:
		// JSON 数字解码为 float64；主键通常是整数
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
		return fmt.Sprintf("%v", v), true
	case int:
		return fmt.Sprintf("%d", v), true
	case int64:
		return fmt.Sprintf("%d", v), true
	default:
		return nil, false
	}
}
