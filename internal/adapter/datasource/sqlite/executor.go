// Package sqlite file: internal/adapter/datasource/sqlite/executor.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"

	"golang.org/x/sync/errgroup"
)

// execer 同时覆盖 *sql.DB 与 *sql.Tx 的写入面。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Executor 解释并执行助手下发的 SEARCH/UPDATE/INSERT 指令批次。
//
// 状态机: OPEN → 逐动作分发 → COMMIT | ROLLBACK。
// 同一批次内所有写动作共享目标文件上的一个事务，任一动作出错则整批回滚；
// SEARCH 跨全部已知文件扇出，单文件的失败只进审计日志，不影响其余文件。
type Executor struct {
	resolver *TableResolver
	lister   port.StoreLister
}

// NewExecutor 创建动作执行器。
func NewExecutor(resolver *TableResolver, lister port.StoreLister) *Executor {
	return &Executor{resolver: resolver, lister: lister}
}

// Execute 执行一个指令批次。filePath 是写动作的目标文件，纯 SEARCH 批次可为空。
// 返回值中的审计日志在出错时同样有效 (包含截至出错点的全部步骤)。
func (e *Executor) Execute(ctx context.Context, actions []domain.ActionDescriptor, filePath string) (*domain.ExecutionResult, error) {
	result := &domain.ExecutionResult{
		Log:           []string{},
		SearchResults: []map[string]any{},
	}

	// 含写动作的批次必须有真实存在的目标文件，整批在任何动作执行前失败
	hasMutation := false
	for _, a := range actions {
		if a.Kind() != domain.ActionSearch {
			hasMutation = true
			break
		}
	}

	var db *sql.DB
	var tx *sql.Tx
	if hasMutation {
		var err error
		db, err = Open(filePath)
		if err != nil {
			return result, err
		}
		defer db.Close()

		tx, err = db.BeginTx(ctx, nil)
		if err != nil {
			return result, fmt.Errorf("开启事务失败: %w", err)
		}
	}

	rollback := func(cause error) (*domain.ExecutionResult, error) {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("[Executor] 回滚失败", "file", filePath, "error", rbErr)
			}
		}
		return result, cause
	}

	for _, action := range actions {
		switch action.Kind() {
		case domain.ActionSearch:
			if action.Table == "" {
				continue
			}
			e.dispatchSearch(ctx, action, filePath, result)

		case domain.ActionUpdate, domain.ActionInsert:
			if action.Table == "" || len(action.Data) == 0 {
				continue
			}

			table := e.resolver.Resolve(ctx, db, action.Table)
			if table != action.Table {
				result.Log = append(result.Log, fmt.Sprintf("Resolved table '%s' to '%s'", action.Table, table))
			}

			var err error
			if action.Kind() == domain.ActionUpdate {
				err = e.dispatchUpdate(ctx, db, tx, table, action, result)
			} else {
				err = e.dispatchInsert(ctx, db, tx, table, action, result)
			}
			if err != nil {
				return rollback(err)
			}

		default:
			result.Log = append(result.Log, fmt.Sprintf("Skipped unknown action type '%s'", action.Type))
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return rollback(fmt.Errorf("提交事务失败: %w", err))
		}
	}
	return result, nil
}

// fileSearchOutcome 保存单个候选文件的检索产出，扇出结束后按文件顺序合并，
// 保证审计日志与结果顺序确定。
type fileSearchOutcome struct {
	logs []string
	rows []map[string]any
}

// dispatchSearch 把一条 SEARCH 扇出到所有已知文件。
// 表引用按文件独立解析：不同文件可能用不同的表标识承载同一逻辑分类。
func (e *Executor) dispatchSearch(ctx context.Context, action domain.ActionDescriptor, filePath string, result *domain.ExecutionResult) {
	result.Log = append(result.Log, fmt.Sprintf("SEARCHing for %s with %v", action.Table, action.Filter))

	var targets []string
	for _, store := range e.lister.Stores() {
		targets = append(targets, store.Path)
	}
	if len(targets) == 0 && filePath != "" {
		// 尚未扫描目录时退回到当前文件
		targets = []string{filePath}
	}

	outcomes := make([]fileSearchOutcome, len(targets))
	g, searchCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			outcomes[i] = e.searchOneFile(searchCtx, target, action.Table, action.Filter)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		result.Log = append(result.Log, out.logs...)
		result.SearchResults = append(result.SearchResults, out.rows...)
	}
}

// searchOneFile 在单个文件内执行包含式检索。所有失败都折叠进日志，绝不上抛。
func (e *Executor) searchOneFile(ctx context.Context, path, proposedTable string, filter map[string]any) fileSearchOutcome {
	var out fileSearchOutcome
	base := filepath.Base(path)

	db, err := Open(path)
	if err != nil {
		out.logs = append(out.logs, fmt.Sprintf("Error searching %s: %v", path, err))
		return out
	}
	defer db.Close()

	table := e.resolver.Resolve(ctx, db, proposedTable)
	exists, err := HasTable(ctx, db, table)
	if err != nil {
		out.logs = append(out.logs, fmt.Sprintf("Error searching %s: %v", path, err))
		return out
	}
	if !exists {
		// 该文件不承载此逻辑分类，静默跳过
		return out
	}

	inv, err := Inventory(ctx, db, table)
	if err != nil {
		out.logs = append(out.logs, fmt.Sprintf("Error searching %s: %v", path, err))
		return out
	}

	kept, _ := splitWildcardFilter(filter)
	query, args, err := buildSearchSQL(inv, kept)
	if err != nil {
		out.logs = append(out.logs, fmt.Sprintf("Error searching %s: %v", path, err))
		return out
	}

	rows, err := queryRows(ctx, db, query, args...)
	if err != nil {
		out.logs = append(out.logs, fmt.Sprintf("Error searching %s: %v", path, err))
		return out
	}
	for _, row := range rows {
		row["_source"] = base
		out.rows = append(out.rows, row)
	}

	if len(out.rows) > 0 {
		out.logs = append(out.logs, fmt.Sprintf("Found %d in %s", len(out.rows), base))
	}
	return out
}

// dispatchUpdate 处理两种 UPDATE 形态：按主键单行、按过滤条件批量。
// 返回非 nil 错误意味着存储层失败，调用方回滚整批。
func (e *Executor) dispatchUpdate(ctx context.Context, db *sql.DB, tx *sql.Tx, table string, action domain.ActionDescriptor, result *domain.ExecutionResult) error {
	if action.ID != nil {
		pk, err := ResolvePrimaryKey(ctx, db, table)
		if err != nil {
			// 主键不可解析：逐动作记录并跳过，不致命
			result.Log = append(result.Log, fmt.Sprintf("Skipped UPDATE on %s: Could not determine Primary Key", table))
			return nil
		}

		inv, err := Inventory(ctx, db, table)
		if err != nil {
			return err
		}

		affected, keyUsed, err := execUpdateByKey(ctx, tx, inv, action.Data, pk, action.ID)
		if err != nil {
			return err
		}
		if affected > 0 {
			result.Count += affected
			result.Log = append(result.Log, fmt.Sprintf("UPDATE %s: Modified %d row(s) (PK: %s=%v)", table, affected, pk, keyUsed))
		} else {
			result.Log = append(result.Log, fmt.Sprintf("UPDATE %s: No rows found for %s='%v'", table, pk, action.ID))
		}
		return nil
	}

	if action.Filter != nil {
		inv, err := Inventory(ctx, db, table)
		if err != nil {
			return err
		}

		kept, elided := splitWildcardFilter(action.Filter)
		for _, k := range elided {
			result.Log = append(result.Log, fmt.Sprintf("Filter wildcard on %s detected, treating as ANY", k))
		}

		query, args, hasWhere, err := buildUpdateByFilterSQL(inv, action.Data, kept)
		if err != nil {
			return err
		}
		if !hasWhere {
			// 有意为之的整表更新，引擎层面不可逆，必须显著记录
			result.Log = append(result.Log, "Applying UPDATE to ALL rows (Filter was empty or wildcard)")
			slog.Warn("[Executor] 整表 UPDATE", "table", table)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("UPDATE '%s' 执行失败: %w", table, err)
		}
		affected, _ := res.RowsAffected()
		if affected > 0 {
			result.Count += affected
			result.Log = append(result.Log, fmt.Sprintf("BATCH UPDATE %s: Modified %d row(s)", table, affected))
		} else {
			result.Log = append(result.Log, fmt.Sprintf("BATCH UPDATE %s: No rows match criteria", table))
		}
		return nil
	}

	result.Log = append(result.Log, fmt.Sprintf("Skipped UPDATE on %s: No ID or Filter provided", table))
	return nil
}

// dispatchInsert 插入恰好一行，列集完全以提交数据为准。
func (e *Executor) dispatchInsert(ctx context.Context, db *sql.DB, tx *sql.Tx, table string, action domain.ActionDescriptor, result *domain.ExecutionResult) error {
	inv, err := Inventory(ctx, db, table)
	if err != nil {
		return err
	}
	query, args, err := buildInsertSQL(inv, action.Data)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("INSERT '%s' 执行失败: %w", table, err)
	}
	affected, _ := res.RowsAffected()
	result.Count += affected
	result.Log = append(result.Log, fmt.Sprintf("INSERT %s: Success", table))
	return nil
}

// execUpdateByKey 按主键执行 UPDATE，0 行命中时做一次键类型转换重试。
// 文本型主键列里存的数字、数值列里收到的字符串都属于常见的模型输出偏差。
// 返回实际生效的键值 (可能是转换后的)。
func execUpdateByKey(ctx context.Context, ex execer, inv domain.TableInventory, data map[string]any, keyCol string, keyValue any) (int64, any, error) {
	query, args, err := buildUpdateByKeySQL(inv, data, keyCol, keyValue)
	if err != nil {
		return 0, keyValue, err
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, keyValue, fmt.Errorf("UPDATE '%s' 执行失败: %w", inv.Table, err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		return affected, keyValue, nil
	}

	converted, ok := convertKeyType(keyValue)
	if !ok {
		return 0, keyValue, nil
	}

	args[len(args)-1] = converted
	res, err = ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, converted, fmt.Errorf("UPDATE '%s' 类型转换重试失败: %w", inv.Table, err)
	}
	affected, _ = res.RowsAffected()
	return affected, converted, nil
}

// UpdateRowByKey 是 /api/update 使用的单行更新入口：
// 自动解析主键、校验列、必要时做一次键类型转换重试。
// 返回实际使用的主键列名与受影响行数。
func UpdateRowByKey(ctx context.Context, path, table string, id any, updates map[string]any) (string, int64, error) {
	db, err := Open(path)
	if err != nil {
		return "", 0, err
	}
	defer db.Close()

	pk, err := ResolvePrimaryKey(ctx, db, table)
	if err != nil {
		return "", 0, err
	}
	inv, err := Inventory(ctx, db, table)
	if err != nil {
		return pk, 0, err
	}

	affected, _, err := execUpdateByKey(ctx, db, inv, updates, pk, id)
	return pk, affected, err
}
