package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/errors"
)

type row = map[string]any

// Rows 按表保存 JSON 形态的行
type Rows struct {
	mu     sync.RWMutex
	tables map[string][]row
	clock  clockwork.Clock
	faults *Faults
	reads  map[string]int
}

func newRows(clock clockwork.Clock, faults *Faults) *Rows {
	return &Rows{
		tables: make(map[string][]row),
		clock:  clock,
		faults: faults,
		reads:  make(map[string]int),
	}
}

func (r *Rows) Select(ctx context.Context, q *backend.Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := backend.CheckDest(dest); err != nil {
		return err
	}
	if err := r.faults.takeSelect(q.Table); err != nil {
		return err
	}

	r.mu.Lock()
	r.reads[q.Table]++
	matched := r.match(q)
	r.mu.Unlock()

	if q.OrderBy != "" {
		slices.SortStableFunc(matched, func(a, b row) int {
			c := compare(a[q.OrderBy], b[q.OrderBy])
			if q.Desc {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return remarshal(matched, dest)
}

func (r *Rows) Insert(ctx context.Context, table string, in any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rec row
	if err := remarshal(in, &rec); err != nil {
		return errors.InvalidInput("insert %s: %v", table, err)
	}
	if id, _ := rec["id"].(string); id == "" {
		rec["id"] = uuid.NewString()
	}
	now := r.clock.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := rec["created_at"]; !ok {
		rec["created_at"] = now
	}
	rec["updated_at"] = now

	r.mu.Lock()
	r.tables[table] = append(r.tables[table], rec)
	r.mu.Unlock()

	if dest == nil {
		return nil
	}
	return remarshal([]row{rec}, dest)
}

func (r *Rows) Update(ctx context.Context, q *backend.Query, patch any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var fields row
	if err := remarshal(patch, &fields); err != nil {
		return errors.InvalidInput("update %s: %v", q.Table, err)
	}
	delete(fields, "id")
	fields["updated_at"] = r.clock.Now().UTC().Format(time.RFC3339Nano)

	r.mu.Lock()
	var updated []row
	for _, rec := range r.tables[q.Table] {
		if matches(rec, q.Filters) {
			maps.Copy(rec, fields)
			updated = append(updated, maps.Clone(rec))
		}
	}
	r.mu.Unlock()

	if dest == nil {
		return nil
	}
	return remarshal(updated, dest)
}

// Put 直接写入行，演示数据和测试使用
func (r *Rows) Put(table string, rows ...any) error {
	for _, in := range rows {
		var rec row
		if err := remarshal(in, &rec); err != nil {
			return err
		}
		r.mu.Lock()
		r.tables[table] = append(r.tables[table], rec)
		r.mu.Unlock()
	}
	return nil
}

// Reads 返回某张表被查询的次数
func (r *Rows) Reads(table string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reads[table]
}

func (r *Rows) Len(table string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables[table])
}

// 调用方持锁
func (r *Rows) match(q *backend.Query) []row {
	var out []row
	for _, rec := range r.tables[q.Table] {
		if matches(rec, q.Filters) {
			out = append(out, maps.Clone(rec))
		}
	}
	return out
}

func matches(rec row, filters []backend.Filter) bool {
	for _, f := range filters {
		v := rec[f.Column]
		switch f.Op {
		case backend.OpEq:
			if !equal(v, f.Value) {
				return false
			}
		case backend.OpNeq:
			if equal(v, f.Value) {
				return false
			}
		case backend.OpIn:
			values, _ := f.Value.([]any)
			if !slices.ContainsFunc(values, func(x any) bool { return equal(v, x) }) {
				return false
			}
		}
	}
	return true
}

// 行经过 JSON 往返，数字都是 float64，统一按字符串比较
func equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
