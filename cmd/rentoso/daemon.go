package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kochabx/rentoso/app"
	"github.com/kochabx/rentoso/audit"
	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/backend/mock"
	"github.com/kochabx/rentoso/backend/rest"
	"github.com/kochabx/rentoso/catalog"
	"github.com/kochabx/rentoso/config"
	"github.com/kochabx/rentoso/core/auth/session"
	"github.com/kochabx/rentoso/core/rate"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/invite"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/preset"
	"github.com/kochabx/rentoso/realtime"
	"github.com/kochabx/rentoso/store"
	"github.com/kochabx/rentoso/store/db"
	"github.com/kochabx/rentoso/store/kafka"
	"github.com/kochabx/rentoso/store/memory"
	"github.com/kochabx/rentoso/store/oss/minio"
	"github.com/kochabx/rentoso/store/redis"
	xhttp "github.com/kochabx/rentoso/transport/http"
)

// daemon 按配置装配好的全部组件
type daemon struct {
	config   *config.Rentoso
	logger   *log.Logger
	client   *backend.Client
	manager  *session.Manager
	catalog  *catalog.Catalog
	invites  *invite.Service
	realtime *realtime.Client
	server   *xhttp.Server

	redis   *redis.Client
	db      *db.Client
	closers []app.CloseFunc

	warmMu    sync.Mutex
	warmedFor string
	stopWatch func()
}

func build(ctx context.Context, cfg *config.Rentoso, logger *log.Logger) (_ *daemon, err error) {
	d := &daemon{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	p, err := preset.Parse(cfg.Backend.Preset)
	if err != nil {
		return nil, errors.InvalidInput("%v", err)
	}
	if d.client, err = d.backend(p); err != nil {
		return nil, err
	}

	if cfg.Media.Provider == "minio" {
		mc, err := minio.NewClient(cfg.Media.Minio)
		if err != nil {
			return nil, err
		}
		if err := mc.EnsureBucket(ctx, mc.Bucket()); err != nil {
			logger.Warn().Err(err).Str("bucket", mc.Bucket()).Msg("media bucket not ready")
		}
		d.client.Storage = mc
		d.onClose("minio", func(context.Context) error { return mc.Close() })
	}

	short, err := d.kv(cfg.Storage.Short)
	if err != nil {
		return nil, err
	}
	durable, err := d.kv(cfg.Storage.Durable)
	if err != nil {
		return nil, err
	}

	sink, err := d.sink()
	if err != nil {
		return nil, err
	}

	persist := session.NewPersistence(short, durable,
		session.WithKeys(cfg.Session.Keys),
		session.WithFreshness(cfg.Session.Freshness),
		session.WithPersistenceLogger(logger),
	)
	d.manager, err = session.NewManager(d.client, persist,
		session.WithConfig(cfg.Session),
		session.WithLogger(logger),
		session.WithSink(sink),
		session.WithResolver(preset.NewResolver(preset.WithDefault(p))),
	)
	if err != nil {
		return nil, err
	}

	d.catalog, err = catalog.New(d.client.Rows, cfg.Cache,
		catalog.WithPersist(durable),
		catalog.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	d.onClose("catalog", func(context.Context) error { d.catalog.Close(); return nil })
	d.stopWatch = d.manager.Watch(d.warm)

	d.invites = invite.New(d.client,
		invite.WithSession(d.manager.Session),
		invite.WithAcceptURL(cfg.Invite.AcceptURL),
		invite.WithLogger(logger),
	)

	if cfg.Realtime.Enabled {
		if d.realtime, err = d.subscriber(); err != nil {
			return nil, err
		}
	}

	apiOpts := []xhttp.APIOption{
		xhttp.WithInvites(d.invites),
		xhttp.WithMedia(d.client.Storage, cfg.Media.Minio.Bucket),
	}
	if !cfg.Server.SignInRate.Disabled {
		l, err := d.limiter()
		if err != nil {
			return nil, err
		}
		apiOpts = append(apiOpts, xhttp.WithSignInLimiter(l))
	}
	api := xhttp.NewAPI(d.manager, d.catalog, apiOpts...)
	if d.server, err = xhttp.NewServer(cfg.Server, api.Register, xhttp.WithLogger(logger)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *daemon) backend(p preset.Preset) (*backend.Client, error) {
	switch d.config.Backend.Mode {
	case config.ModeMock:
		b, err := mock.NewSeeded(&d.config.Backend.JWT, p, mock.WithLogger(d.logger))
		if err != nil {
			return nil, err
		}
		d.logger.Warn().Str("email", mock.DemoFor(p).Email).Msg("running against the in-memory demo backend")
		return b.Client(), nil
	default:
		c, err := rest.New(&d.config.Backend.Config, rest.WithLogger(d.logger))
		if err != nil {
			return nil, err
		}
		return c.Backend(), nil
	}
}

func (d *daemon) kv(kind string) (store.KV, error) {
	switch kind {
	case config.KindRedis:
		if d.redis == nil {
			c, err := redis.New(&d.config.Redis, redis.WithLogger(d.logger))
			if err != nil {
				return nil, err
			}
			d.redis = c
			d.onClose("redis", func(context.Context) error { return c.Close() })
		}
		return d.redis, nil
	case config.KindDB:
		if d.db == nil {
			c, err := db.New(&d.config.DB, db.WithLogger(d.logger))
			if err != nil {
				return nil, err
			}
			d.db = c
			d.onClose("db", func(context.Context) error { return c.Close() })
		}
		return d.db, nil
	default:
		return memory.New(memory.WithTTL(d.config.Storage.ShortTTL)), nil
	}
}

// limiter 已连接 Redis 时共享计数，否则按进程计数
func (d *daemon) limiter() (rate.Limiter, error) {
	rc := d.config.Server.SignInRate.Config
	if d.redis != nil {
		return rate.NewSlidingWindowLimiter(d.redis.UniversalClient(), d.config.Redis.KeyPrefix+"rate:", rc)
	}
	return rate.NewWindowLimiter(rc, nil)
}

func (d *daemon) sink() (audit.Sink, error) {
	switch d.config.Audit.Sink {
	case "none":
		return audit.Nop{}, nil
	case "kafka":
		kc, err := kafka.New(&d.config.Kafka, kafka.WithLogger(d.logger))
		if err != nil {
			return nil, err
		}
		d.onClose("kafka", func(context.Context) error { return kc.Close() })
		ks, err := audit.NewKafkaSink(kc, d.config.Audit.Topic)
		if err != nil {
			return nil, err
		}
		return audit.Multi{audit.NewLogSink(d.logger), ks}, nil
	default:
		return audit.NewLogSink(d.logger), nil
	}
}

// subscriber 未配置地址时由后端地址推导
func (d *daemon) subscriber() (*realtime.Client, error) {
	rc := d.config.Realtime.Config
	if rc.URL == "" && d.config.Backend.URL != "" {
		rc.URL = strings.TrimRight(d.config.Backend.URL, "/") + "/realtime/v1/websocket"
	}
	if rc.APIKey == "" {
		rc.APIKey = d.config.Backend.AnonKey
	}
	return realtime.New(rc, d.onChange,
		realtime.WithToken(func() string {
			if s := d.manager.Session(); s != nil {
				return s.AccessToken
			}
			return ""
		}),
		realtime.WithLogger(d.logger),
	)
}

func (d *daemon) onChange(ch realtime.Change) {
	if d.catalog.InvalidateTable(context.Background(), ch.Table) {
		d.logger.Debug().Str("table", ch.Table).Str("type", ch.Type).Msg("cache invalidated by realtime change")
	}
}

// warm 公司 id 首次可用时预取列表，会话失效后重置
func (d *daemon) warm(s session.Snapshot) {
	d.warmMu.Lock()
	defer d.warmMu.Unlock()
	if s.State == session.StateInvalid {
		d.warmedFor = ""
		return
	}
	id := s.CompanyID()
	if s.State != session.StateValid || !s.DataLoaded || id == "" || id == d.warmedFor {
		return
	}
	d.warmedFor = id
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_ = d.catalog.Warm(ctx, id)
	}()
}

func (d *daemon) onClose(name string, fn func(context.Context) error) {
	d.closers = append(d.closers, app.CloseFunc{Name: name, Fn: fn, Timeout: 5 * time.Second})
}

// close 构建失败时释放已创建的资源
func (d *daemon) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
		if err := c.Fn(ctx); err != nil {
			d.logger.Warn().Err(err).Str("close", c.Name).Msg("release failed")
		}
		cancel()
	}
}

// options 把组件交给 app 管理。会话在 ctx 取消后释放，先于其余关闭函数
func (d *daemon) options() []app.Option {
	opts := []app.Option{app.WithServers(d.server)}
	for _, c := range d.closers {
		opts = append(opts, app.WithClose(c.Name, c.Fn, c.Timeout))
	}
	opts = append(opts, app.WithWorker("session", d.runSession))
	if d.realtime != nil {
		opts = append(opts, app.WithWorker("realtime", d.realtime.Run))
	}
	return opts
}

func (d *daemon) runSession(ctx context.Context) error {
	if err := d.manager.Init(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("session init failed")
	}
	<-ctx.Done()
	if d.stopWatch != nil {
		d.stopWatch()
	}
	d.manager.Dispose()
	return nil
}
