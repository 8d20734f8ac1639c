package session

import (
	"context"

	"github.com/kochabx/rentoso/store"
)

// nopKV 未配置持久化时使用
type nopKV struct{}

func (nopKV) Get(context.Context, string) ([]byte, error)    { return nil, store.ErrNotFound }
func (nopKV) Set(context.Context, string, []byte) error      { return nil }
func (nopKV) Delete(context.Context, ...string) error        { return nil }
func (nopKV) Keys(context.Context, string) ([]string, error) { return nil, nil }
