// Package catalog 按实体划分的列表缓存，全部按公司 id 过滤。
package catalog

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/cache"
	"github.com/kochabx/rentoso/core/scheduler"
	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/store"
)

// 持久化键
const (
	KeyProperties    = "propiedad-storage"
	KeyOpportunities = "oportunidades-storage"
	KeyProspects     = "prospectos-storage"
	KeyOwners        = "propietario-storage"
)

type Config struct {
	TTL        time.Duration `json:"ttl" mapstructure:"ttl" default:"5m"`
	CompanyTTL time.Duration `json:"company_ttl" mapstructure:"company_ttl" default:"30m"`
	// Version 实体结构不兼容变化时递增，旧的持久化缓存会被丢弃
	Version int `json:"version" mapstructure:"version" default:"2"`
	Workers int `json:"workers" mapstructure:"workers" default:"4"`
}

// Catalog 各实体的列表缓存
type Catalog struct {
	Properties    *cache.Store[model.Property]
	Opportunities *cache.Store[model.Opportunity]
	Prospects     *cache.Store[model.Prospect]
	Owners        *cache.Store[model.Owner]
	Companies     *cache.Store[model.Company]

	rows   backend.Rows
	pool   *scheduler.Pool
	logger *log.Logger
}

type Option func(*options)

type options struct {
	kv     store.KV
	clock  clockwork.Clock
	logger *log.Logger
}

// WithPersist 列表缓存写入 kv，公司缓存不持久化
func WithPersist(kv store.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func New(rows backend.Rows, c Config, opts ...Option) (*Catalog, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, err
	}
	o := options{clock: clockwork.NewRealClock(), logger: log.G}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := scheduler.NewPool(c.Workers, o.logger)
	if err != nil {
		return nil, err
	}
	cat := &Catalog{
		rows:   rows,
		pool:   pool,
		logger: o.logger.Component("catalog"),
	}

	cat.Properties = cache.New("properties", byCompany[model.Property](rows, model.TableProperties, "updated_at", true),
		storeOptions[model.Property](o, c.TTL, c.Version, KeyProperties,
			cache.WithFetchOne(byID[model.Property](rows, model.TableProperties)))...)
	cat.Opportunities = cache.New("opportunities", byCompany[model.Opportunity](rows, model.TableOpportunities, "updated_at", true),
		storeOptions[model.Opportunity](o, c.TTL, c.Version, KeyOpportunities,
			cache.WithFetchOne(byID[model.Opportunity](rows, model.TableOpportunities)))...)
	cat.Prospects = cache.New("prospects", byCompany[model.Prospect](rows, model.TableProspects, "last_seen_at", true),
		storeOptions[model.Prospect](o, c.TTL, c.Version, KeyProspects,
			cache.WithFetchOne(byID[model.Prospect](rows, model.TableProspects)))...)
	cat.Owners = cache.New("owners", byCompany[model.Owner](rows, model.TableOwners, "nombre", false),
		storeOptions[model.Owner](o, c.TTL, c.Version, KeyOwners,
			cache.WithFetchOne(byID[model.Owner](rows, model.TableOwners)))...)
	cat.Companies = cache.New("companies", companyByID(rows),
		storeOptions[model.Company](o, c.CompanyTTL, c.Version, "")...)
	return cat, nil
}

func storeOptions[T model.Keyed](o options, ttl time.Duration, version int, key string, extra ...cache.Option[T]) []cache.Option[T] {
	opts := []cache.Option[T]{
		cache.WithTTL[T](ttl),
		cache.WithVersion[T](version),
		cache.WithClock[T](o.clock),
		cache.WithLogger[T](o.logger),
	}
	if o.kv != nil && key != "" {
		opts = append(opts, cache.WithPersist[T](o.kv, key))
	}
	return append(opts, extra...)
}

// Warm 已知公司 id 后并发预取全部列表
func (c *Catalog) Warm(ctx context.Context, companyID string) error {
	if companyID == "" {
		return nil
	}
	err := c.pool.Run(ctx,
		func(ctx context.Context) error { _, err := c.Properties.Fetch(ctx, companyID); return err },
		func(ctx context.Context) error { _, err := c.Opportunities.Fetch(ctx, companyID); return err },
		func(ctx context.Context) error { _, err := c.Prospects.Fetch(ctx, companyID); return err },
		func(ctx context.Context) error { _, err := c.Owners.Fetch(ctx, companyID); return err },
		func(ctx context.Context) error { _, err := c.Companies.Fetch(ctx, companyID); return err },
	)
	if err != nil {
		c.logger.Warn().Err(err).Str("empresa_id", companyID).Msg("catalog warm-up incomplete")
	}
	return err
}

// InvalidateTable 按后端表名失效对应缓存，未知表返回 false
func (c *Catalog) InvalidateTable(ctx context.Context, table string) bool {
	switch table {
	case model.TableProperties:
		c.Properties.Invalidate(ctx)
	case model.TableOpportunities:
		c.Opportunities.Invalidate(ctx)
	case model.TableProspects:
		c.Prospects.Invalidate(ctx)
	case model.TableOwners:
		c.Owners.Invalidate(ctx)
	case model.TableCompanies:
		c.Companies.Invalidate(ctx)
	default:
		return false
	}
	return true
}

// Tables 可被 InvalidateTable 识别的表
func (c *Catalog) Tables() []string {
	return []string{model.TableProperties, model.TableOpportunities, model.TableProspects, model.TableOwners, model.TableCompanies}
}

func (c *Catalog) InvalidateAll(ctx context.Context) {
	for _, t := range c.Tables() {
		c.InvalidateTable(ctx, t)
	}
}

// Reset 清空全部缓存，登出时调用
func (c *Catalog) Reset(ctx context.Context) {
	c.Properties.Reset(ctx)
	c.Opportunities.Reset(ctx)
	c.Prospects.Reset(ctx)
	c.Owners.Reset(ctx)
	c.Companies.Reset(ctx)
}

func (c *Catalog) Close() {
	c.pool.Release()
}

func byCompany[T any](rows backend.Rows, table, orderBy string, desc bool) cache.Fetcher[T] {
	return func(ctx context.Context, companyID string) ([]T, error) {
		return backend.List[T](ctx, rows, backend.From(table).Eq("empresa_id", companyID).Order(orderBy, desc))
	}
}

func byID[T any](rows backend.Rows, table string) cache.OneFetcher[T] {
	return func(ctx context.Context, id string) (*T, error) {
		return backend.MaybeSingle[T](ctx, rows, backend.From(table).Eq("id", id))
	}
}

func companyByID(rows backend.Rows) cache.Fetcher[model.Company] {
	return func(ctx context.Context, id string) ([]model.Company, error) {
		return backend.List[model.Company](ctx, rows, backend.From(model.TableCompanies).Eq("id", id))
	}
}
