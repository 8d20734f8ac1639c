package backend

import (
	"context"
	"fmt"
	"reflect"
)

// Op 过滤运算符，取值与 PostgREST 一致
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Query 单表查询
type Query struct {
	Table   string
	Columns string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// From 默认选择全部列
func From(table string) *Query {
	return &Query{Table: table, Columns: "*"}
}

func (q *Query) Select(columns string) *Query {
	q.Columns = columns
	return q
}

func (q *Query) Eq(column string, value any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpEq, Value: value})
	return q
}

func (q *Query) Neq(column string, value any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpNeq, Value: value})
	return q
}

func (q *Query) In(column string, values ...any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpIn, Value: values})
	return q
}

func (q *Query) Order(column string, desc bool) *Query {
	q.OrderBy, q.Desc = column, desc
	return q
}

func (q *Query) WithLimit(n int) *Query {
	q.Limit = n
	return q
}

// MaybeSingle 最多取一行，没有结果时返回 nil
func MaybeSingle[T any](ctx context.Context, rows Rows, q *Query) (*T, error) {
	q.Limit = 1
	var out []T
	if err := rows.Select(ctx, q, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// List 查询全部匹配行
func List[T any](ctx context.Context, rows Rows, q *Query) ([]T, error) {
	var out []T
	if err := rows.Select(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckDest dest 必须是切片指针
func CheckDest(dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("backend: dest must be a pointer to slice, got %T", dest)
	}
	return nil
}
