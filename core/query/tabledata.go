package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

// FilterOp is a table-data filter operator. Unknown operators are dropped
// from the generated condition list rather than erroring.
type FilterOp string

const (
	FilterEq       FilterOp = "eq"
	FilterNeq      FilterOp = "neq"
	FilterGt       FilterOp = "gt"
	FilterLt       FilterOp = "lt"
	FilterGte      FilterOp = "gte"
	FilterLte      FilterOp = "lte"
	FilterContains FilterOp = "contains"
	FilterIsNull   FilterOp = "isnull"
	FilterNotNull  FilterOp = "notnull"
)

// Filter is one column condition. Value is ignored for the null checks.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value,omitempty"`
}

// Sort orders the page by one column.
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// TableDataRequest is a paginated table read. Page is 1-indexed; the
// effective offset is (Page-1)*PageSize.
type TableDataRequest struct {
	Schema   string   `json:"schema,omitempty"`
	Table    string   `json:"table"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Sort     *Sort    `json:"sort,omitempty"`
	Filters  []Filter `json:"filters,omitempty"`
}

// TableDataResult is one page of rows plus the filtered total.
type TableDataResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	TotalRows int64    `json:"totalRows"`
}

// DefaultPageSize applies when a request omits the page size.
const DefaultPageSize = 100

// TableData reads one page of a table. Identifiers go through the shared
// quoting utility; filter values are bound. The total row count uses the
// same WHERE clause as the page itself.
func TableData(ctx context.Context, db *sql.DB, req TableDataRequest) (TableDataResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	target := sqlite.QualifiedIdent(req.Schema, req.Table)
	where, args := buildWhere(req.Filters)

	var total int64
	countArgs := make([]any, len(args))
	copy(countArgs, args)
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+target+where, countArgs...).Scan(&total); err != nil {
		return TableDataResult{}, cerrors.NewExecution(err)
	}

	stmt := "SELECT * FROM " + target + where
	if req.Sort != nil && req.Sort.Column != "" {
		dir := "ASC"
		if req.Sort.Desc {
			dir = "DESC"
		}
		stmt += " ORDER BY " + sqlite.Ident(req.Sort.Column) + " " + dir
	}
	stmt += " LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return TableDataResult{}, cerrors.NewExecution(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return TableDataResult{}, cerrors.NewExecution(err)
	}

	out := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return TableDataResult{}, cerrors.NewExecution(err)
		}
		for i := range vals {
			vals[i] = normalize(vals[i])
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return TableDataResult{}, cerrors.NewExecution(err)
	}

	return TableDataResult{Columns: cols, Rows: out, TotalRows: total}, nil
}

// buildWhere turns filters into a WHERE clause and bind arguments.
// Conditions are ANDed in the given order; unknown operators are silently
// dropped.
func buildWhere(filters []Filter) (string, []any) {
	var conds []string
	var args []any
	for _, f := range filters {
		col := sqlite.Ident(f.Column)
		switch f.Op {
		case FilterEq:
			conds = append(conds, col+" = ?")
			args = append(args, f.Value)
		case FilterNeq:
			conds = append(conds, col+" != ?")
			args = append(args, f.Value)
		case FilterGt:
			conds = append(conds, col+" > ?")
			args = append(args, f.Value)
		case FilterLt:
			conds = append(conds, col+" < ?")
			args = append(args, f.Value)
		case FilterGte:
			conds = append(conds, col+" >= ?")
			args = append(args, f.Value)
		case FilterLte:
			conds = append(conds, col+" <= ?")
			args = append(args, f.Value)
		case FilterContains:
			// Cast so substring matches behave textually on numeric columns.
			conds = append(conds, col+" LIKE '%' || CAST(? AS TEXT) || '%'")
			args = append(args, fmt.Sprint(f.Value))
		case FilterIsNull:
			conds = append(conds, col+" IS NULL")
		case FilterNotNull:
			conds = append(conds, col+" IS NOT NULL")
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
