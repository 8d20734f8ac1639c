package mock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/model"
)

// 邀请有效期
const invitationTTL = 7 * 24 * time.Hour

// Handler 边缘函数的内存实现
type Handler func(ctx context.Context, body json.RawMessage) (any, error)

// Invocation 一次调用记录
type Invocation struct {
	Name string
	Body json.RawMessage
}

type Functions struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Invocation
}

func newFunctions(rows *Rows, clock clockwork.Clock) *Functions {
	f := &Functions{handlers: make(map[string]Handler)}
	// 写入 user_invitations，不真正发信
	f.Handle("send-invitation-email", func(ctx context.Context, body json.RawMessage) (any, error) {
		var in struct {
			Email     string `json:"email"`
			Role      string `json:"rol"`
			CompanyID string `json:"empresaId"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			return map[string]any{"error": "cuerpo inválido", "code": "INVALID_BODY"}, nil
		}
		now := clock.Now().UTC()
		inv := model.Invitation{
			ID:        uuid.NewString(),
			Email:     in.Email,
			Role:      in.Role,
			Token:     uuid.NewString(),
			CompanyID: in.CompanyID,
			Status:    "pending",
			ExpiresAt: now.Add(invitationTTL),
			CreatedAt: now,
		}
		if err := rows.Insert(ctx, model.TableInvitations, inv, nil); err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "invitationId": inv.ID}, nil
	})
	f.Handle("submit-property", func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"success": true, "id": uuid.NewString()}, nil
	})
	f.Handle("transcribe-audio", func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"text": ""}, nil
	})
	f.Handle("rentoso-chat", func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"reply": "Modo demo: el asistente no está disponible."}, nil
	})
	return f
}

// Handle 注册或替换函数
func (f *Functions) Handle(name string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

func (f *Functions) Invoke(ctx context.Context, name string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.InvalidInput("invoke %s: %v", name, err)
	}
	f.mu.Lock()
	h, ok := f.handlers[name]
	f.calls = append(f.calls, Invocation{Name: name, Body: body})
	f.mu.Unlock()
	if !ok {
		return errors.NotFound("function %s not found", name)
	}

	res, err := h(ctx, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return remarshal(res, out)
}

// Calls 按调用顺序返回记录
func (f *Functions) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.calls...)
}
