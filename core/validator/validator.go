package validator

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	es_translations "github.com/go-playground/validator/v10/translations/es"
)

const (
	LangEN = "en"
	LangES = "es"
)

// Validate 全局校验器，默认西班牙语提示
var Validate = New(WithDefaultLang(LangES))

// Validator 带多语言错误提示的结构体校验器
type Validator struct {
	validate    *validator.Validate
	translators map[string]ut.Translator
	defaultLang string
}

type Option func(*Validator)

func WithDefaultLang(lang string) Option {
	return func(v *Validator) {
		v.defaultLang = lang
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		translators: make(map[string]ut.Translator, 2),
		defaultLang: LangEN,
	}
	for _, opt := range opts {
		opt(v)
	}

	// 字段名使用 json 标签，与接口返回保持一致
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, es.New())
	if trans, ok := uni.GetTranslator(LangEN); ok {
		_ = en_translations.RegisterDefaultTranslations(v.validate, trans)
		v.translators[LangEN] = trans
	}
	if trans, ok := uni.GetTranslator(LangES); ok {
		_ = es_translations.RegisterDefaultTranslations(v.validate, trans)
		v.translators[LangES] = trans
	}
	return v
}

// Struct 使用默认语言校验
func (v *Validator) Struct(s any) error {
	return v.StructLang(context.Background(), v.defaultLang, s)
}

// StructLang 使用指定语言校验，未知语言回退到默认语言
func (v *Validator) StructLang(ctx context.Context, lang string, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	err := v.validate.StructCtx(ctx, s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	trans, ok := v.translators[lang]
	if !ok {
		trans = v.translators[v.defaultLang]
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// Engine 返回底层校验器，用于注册自定义规则
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError 汇总的校验失败
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}
