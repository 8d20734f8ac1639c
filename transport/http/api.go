package http

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/catalog"
	"github.com/kochabx/rentoso/core/auth/session"
	"github.com/kochabx/rentoso/core/cache"
	"github.com/kochabx/rentoso/core/rate"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/invite"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/preset"
	"github.com/kochabx/rentoso/transport/http/middleware"
	"github.com/kochabx/rentoso/transport/http/response"
)

// API 会话与列表缓存的路由，邀请与图片路由在配置了对应服务时挂载
type API struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
	invites  *invite.Service
	media    backend.Storage
	bucket   string
	limiter  rate.Limiter
}

type APIOption func(*API)

func WithInvites(s *invite.Service) APIOption {
	return func(a *API) {
		a.invites = s
	}
}

// WithMedia 房源图片写入 bucket
func WithMedia(storage backend.Storage, bucket string) APIOption {
	return func(a *API) {
		a.media = storage
		a.bucket = bucket
	}
}

// WithSignInLimiter 登录接口按 IP 限流
func WithSignInLimiter(l rate.Limiter) APIOption {
	return func(a *API) {
		a.limiter = l
	}
}

func NewAPI(sessions *session.Manager, cat *catalog.Catalog, opts ...APIOption) *API {
	a := &API{sessions: sessions, catalog: cat, bucket: defaultBucket}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/session", a.getSession)
	if a.limiter != nil {
		v1.POST("/session/sign-in", middleware.RateLimit(a.limiter), a.signIn)
	} else {
		v1.POST("/session/sign-in", a.signIn)
	}
	v1.POST("/session/sign-out", a.signOut)

	auth := v1.Group("", a.requireCompany)
	auth.GET("/properties", list(a.catalog.Properties))
	auth.GET("/opportunities", list(a.catalog.Opportunities))
	auth.GET("/prospects", list(a.catalog.Prospects))
	auth.GET("/owners", list(a.catalog.Owners))
	auth.PATCH("/properties/:id", a.patchProperty)
	auth.POST("/cache/invalidate", a.invalidate)

	if a.invites != nil {
		v1.GET("/invitations/verify/:token", a.verifyInvitation)
		v1.GET("/invitations/qr/:token", a.invitationQR)
		auth.GET("/invitations", a.pendingInvitations)
		auth.POST("/invitations", a.sendInvitation)
		auth.DELETE("/invitations/:id", a.cancelInvitation)
	}
	if a.media != nil {
		auth.POST("/properties/:id/images", a.uploadImage)
	}
}

type sessionView struct {
	State      string             `json:"state"`
	UserID     string             `json:"user_id,omitempty"`
	Email      string             `json:"email,omitempty"`
	ExpiresAt  int64              `json:"expires_at,omitempty"`
	Profile    *model.UserProfile `json:"profile,omitempty"`
	Company    *model.Company     `json:"company,omitempty"`
	Preset     preset.Preset      `json:"preset"`
	DataLoaded bool               `json:"data_loaded"`
}

// 令牌不出现在响应中
func viewOf(s session.Snapshot) sessionView {
	v := sessionView{
		State:      s.State.String(),
		Profile:    s.UserProfile,
		Company:    s.Company,
		Preset:     s.Preset,
		DataLoaded: s.DataLoaded,
	}
	if s.Session != nil {
		v.UserID = s.Session.User.ID
		v.Email = s.Session.User.Email
		v.ExpiresAt = s.Session.ExpiresAt
	}
	return v
}

func (a *API) getSession(c *gin.Context) {
	response.GinJSON(c, viewOf(a.sessions.Snapshot()))
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinJSONE(c, errors.InvalidInput("malformed request body").WithCause(err))
		return
	}
	if _, err := a.sessions.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		response.GinJSONE(c, err)
		return
	}
	response.GinJSON(c, viewOf(a.sessions.Snapshot()))
}

func (a *API) signOut(c *gin.Context) {
	ctx := c.Request.Context()
	if err := a.sessions.SignOut(ctx); err != nil {
		response.GinJSONE(c, err)
		return
	}
	a.catalog.Reset(ctx)
	response.GinJSON(c, viewOf(a.sessions.Snapshot()))
}

const companyKey = "empresa_id"

// requireCompany 列表接口需要有效会话且已加载所属公司
func (a *API) requireCompany(c *gin.Context) {
	snap := a.sessions.Snapshot()
	if snap.State != session.StateValid && snap.State != session.StateRefreshing {
		response.GinJSONE(c, errors.Unauthenticated("no active session"))
		return
	}
	id := snap.CompanyID()
	if id == "" {
		response.GinJSONE(c, errors.NotFound("user has no company"))
		return
	}
	c.Set(companyKey, id)
	c.Next()
}

type listView[T any] struct {
	Items         []T    `json:"items"`
	LastFetchedAt *int64 `json:"last_fetched_at,omitempty"`
}

// list ?refresh=true 时跳过缓存
func list[T model.Keyed](s *cache.Store[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, scope := c.Request.Context(), c.GetString(companyKey)
		fetch := s.Fetch
		if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
			fetch = s.Refresh
		}
		items, err := fetch(ctx, scope)
		if err != nil {
			response.GinJSONE(c, err)
			return
		}
		v := listView[T]{Items: items}
		if at := s.Snapshot().LastFetchedAt; at != nil {
			ms := at.UnixMilli()
			v.LastFetchedAt = &ms
		}
		response.GinJSON(c, v)
	}
}

// patchProperty 只修改本地缓存中的条目，请求体中的字段覆盖原值
func (a *API) patchProperty(c *gin.Context) {
	ctx, id := c.Request.Context(), c.Param("id")
	if err := a.ensureLoaded(ctx, c.GetString(companyKey)); err != nil {
		response.GinJSONE(c, err)
		return
	}
	item, ok := a.catalog.Properties.Find(id)
	if !ok {
		response.GinJSONE(c, errors.NotFound("property %s not cached", id))
		return
	}
	if err := c.ShouldBindJSON(&item); err != nil {
		response.GinJSONE(c, errors.InvalidInput("malformed request body").WithCause(err))
		return
	}
	item.ID = id
	if !a.catalog.Properties.UpdateLocal(ctx, item) {
		response.GinJSONE(c, errors.NotFound("property %s not cached", id))
		return
	}
	response.GinJSON(c, item)
}

func (a *API) ensureLoaded(ctx context.Context, companyID string) error {
	_, err := a.catalog.Properties.Fetch(ctx, companyID)
	return err
}

type invalidateRequest struct {
	Table string `json:"table"`
}

// invalidate table 为空时失效全部
func (a *API) invalidate(c *gin.Context) {
	var req invalidateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.GinJSONE(c, errors.InvalidInput("malformed request body").WithCause(err))
			return
		}
	}
	ctx := c.Request.Context()
	if req.Table == "" {
		a.catalog.InvalidateAll(ctx)
		response.GinJSON(c, gin.H{"invalidated": a.catalog.Tables()})
		return
	}
	if !a.catalog.InvalidateTable(ctx, req.Table) {
		response.GinJSONE(c, errors.NotFound("unknown table %s", req.Table))
		return
	}
	response.GinJSON(c, gin.H{"invalidated": []string{req.Table}})
}
