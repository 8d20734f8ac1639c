// Package preset 根据用户决定业务预设（房产中介或共享办公）。
package preset

import (
	"fmt"
	"strings"
)

type Preset string

const (
	Inmobiliaria Preset = "inmobiliaria"
	Coworking    Preset = "coworking"
)

// Default 未匹配任何规则时使用
const Default = Inmobiliaria

func Parse(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case Inmobiliaria, Coworking:
		return p, nil
	case "":
		return Default, nil
	default:
		return "", fmt.Errorf("preset: unknown preset %q", s)
	}
}

func (p Preset) String() string { return string(p) }

func (p Preset) IsCoworking() bool { return p == Coworking }

// Label 共享办公预设下有专用文案时使用专用文案
func (p Preset) Label(def, coworking string) string {
	if p == Coworking && coworking != "" {
		return coworking
	}
	return def
}

// Resolver 先按用户 id 映射，再按邮箱域名映射
type Resolver struct {
	users   map[string]Preset
	domains map[string]Preset
	def     Preset
}

type Option func(*Resolver)

// WithUser 为指定用户固定预设
func WithUser(userID string, p Preset) Option {
	return func(r *Resolver) {
		r.users[userID] = p
	}
}

// WithDomain 邮箱域名，不含 @
func WithDomain(domain string, p Preset) Option {
	return func(r *Resolver) {
		r.domains[strings.ToLower(strings.TrimPrefix(domain, "@"))] = p
	}
}

func WithDefault(p Preset) Option {
	return func(r *Resolver) {
		r.def = p
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		users:   map[string]Preset{},
		domains: map[string]Preset{"nubecowork.cl": Coworking},
		def:     Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(userID, email string) Preset {
	if p, ok := r.users[userID]; ok {
		return p
	}
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		if p, ok := r.domains[strings.ToLower(email[i+1:])]; ok {
			return p
		}
	}
	return r.def
}
