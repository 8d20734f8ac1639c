package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kochabx/rentoso/store"
)

// Entry 键值表的行
type Entry struct {
	Key       string    `gorm:"column:kv_key;primaryKey;size:255"`
	Value     []byte    `gorm:"column:kv_value;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (c *Client) table(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Table(c.config.Table)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := c.table(ctx).Where("kv_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// Set 按主键 upsert
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	return c.table(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kv_value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: value}).Error
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.table(ctx).Where("kv_key IN ?", keys).Delete(&Entry{}).Error
}

func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	q := c.table(ctx).Order("kv_key")
	if prefix != "" {
		q = q.Where("kv_key LIKE ? ESCAPE '!'", likeEscape(prefix)+"%")
	}
	if err := q.Pluck("kv_key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likeEscape(s string) string {
	return likeReplacer.Replace(s)
}

var _ store.KV = (*Client)(nil)
