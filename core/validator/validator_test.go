package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, New().Struct(credentials{Email: "ana@example.com", Password: "secret1"}))
}

func TestStructTranslated(t *testing.T) {
	v := New()

	err := v.StructLang(context.Background(), LangEN, credentials{Email: "nope", Password: "123"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Equal(t, "email", verr.Fields[0].Tag)
	assert.Equal(t, "password", verr.Fields[1].Field)
	assert.Equal(t, "min", verr.Fields[1].Tag)
	assert.Contains(t, verr.Fields[0].Message, "email")

	esErr := v.StructLang(context.Background(), LangES, credentials{})
	require.ErrorAs(t, esErr, &verr)
	assert.Contains(t, verr.Error(), "es un campo requerido")
}

func TestStructUnknownLangFallsBack(t *testing.T) {
	v := New(WithDefaultLang(LangES))
	err := v.StructLang(context.Background(), "pt", credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requerido")
}

func TestStructNil(t *testing.T) {
	assert.Error(t, New().Struct(nil))
}
