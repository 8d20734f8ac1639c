package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kochabx/rentoso/backend"
	xhttp "github.com/kochabx/rentoso/core/net/http"
)

// Rows PostgREST 接口
type Rows struct {
	c *Client
}

func (r *Rows) Select(ctx context.Context, q *backend.Query, dest any) error {
	if err := backend.CheckDest(dest); err != nil {
		return err
	}
	values := filterValues(q)
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	values.Set("select", cols)
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		values.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	_, err := r.c.http.Get(ctx, r.table(q.Table), r.c.bearer(), xhttp.Query(values),
		xhttp.Header("Accept-Profile", r.c.config.Schema), xhttp.Into(dest))
	return mapError(err, "select "+q.Table)
}

func (r *Rows) Insert(ctx context.Context, table string, row any, dest any) error {
	opts := []xhttp.RequestOption{r.c.bearer(), xhttp.Header("Content-Profile", r.c.config.Schema)}
	if dest != nil {
		opts = append(opts, xhttp.Header("Prefer", "return=representation"), xhttp.Into(dest))
	}
	_, err := r.c.http.Post(ctx, r.table(table), row, opts...)
	return mapError(err, "insert "+table)
}

func (r *Rows) Update(ctx context.Context, q *backend.Query, patch any, dest any) error {
	opts := []xhttp.RequestOption{r.c.bearer(), xhttp.Query(filterValues(q)), xhttp.Header("Content-Profile", r.c.config.Schema)}
	if dest != nil {
		opts = append(opts, xhttp.Header("Prefer", "return=representation"), xhttp.Into(dest))
	}
	_, err := r.c.http.Patch(ctx, r.table(q.Table), patch, opts...)
	return mapError(err, "update "+q.Table)
}

func (r *Rows) table(name string) string {
	return r.c.endpoint("/rest/v1/" + url.PathEscape(name))
}

func filterValues(q *backend.Query) url.Values {
	values := url.Values{}
	for _, f := range q.Filters {
		values.Add(f.Column, formatFilter(f))
	}
	return values
}

func formatFilter(f backend.Filter) string {
	if f.Op == backend.OpIn {
		items, _ := f.Value.([]any)
		parts := make([]string, len(items))
		for i, v := range items {
			parts[i] = quote(fmt.Sprint(v))
		}
		return "in.(" + strings.Join(parts, ",") + ")"
	}
	return string(f.Op) + "." + fmt.Sprint(f.Value)
}

// quote 含保留字符的值需要加双引号
func quote(s string) string {
	if strings.ContainsAny(s, ",.:()\" ") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
