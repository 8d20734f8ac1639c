package session

import (
	"github.com/kochabx/rentoso/core/validator"
	"github.com/kochabx/rentoso/errors"
)

type signInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordInput struct {
	Password string `json:"password" validate:"required,min=6"`
}

// check 校验失败返回 InvalidInput，字段错误放在元数据中
func (m *Manager) check(in any) error {
	err := m.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return errors.InvalidInput("%v", err)
	}
	e := errors.InvalidInput("%s", verr.Error()).WithCause(verr)
	for _, f := range verr.Fields {
		e = e.WithMetadata(f.Field, f.Tag)
	}
	return e
}
