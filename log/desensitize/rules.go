package desensitize

import (
	"fmt"
	"regexp"
)

// Rule 脱敏规则
type Rule interface {
	Name() string
	Process(s string) string
}

// ContentRule 按正则匹配内容替换
type ContentRule struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

func NewContentRule(name, pattern, replacement string) (*ContentRule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &ContentRule{name: name, pattern: re, replacement: replacement}, nil
}

func MustContentRule(name, pattern, replacement string) *ContentRule {
	r, err := NewContentRule(name, pattern, replacement)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *ContentRule) Name() string { return r.name }

func (r *ContentRule) Process(s string) string {
	return r.pattern.ReplaceAllString(s, r.replacement)
}

// FieldRule 按 JSON 字段名整体遮盖字符串值
type FieldRule struct {
	name  string
	field string
	mask  string
	re    *regexp.Regexp
}

func NewFieldRule(name, field, mask string) (*FieldRule, error) {
	if name == "" || field == "" {
		return nil, fmt.Errorf("rule name and field cannot be empty")
	}
	re, err := regexp.Compile(fmt.Sprintf(`("%s"\s*:\s*)"[^"]*"`, regexp.QuoteMeta(field)))
	if err != nil {
		return nil, err
	}
	return &FieldRule{name: name, field: field, mask: mask, re: re}, nil
}

func MustFieldRule(name, field, mask string) *FieldRule {
	r, err := NewFieldRule(name, field, mask)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *FieldRule) Name() string { return r.name }

func (r *FieldRule) Process(s string) string {
	return r.re.ReplaceAllString(s, `${1}"`+r.mask+`"`)
}
