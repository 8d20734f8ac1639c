package session

import (
	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/preset"
)

// State 会话状态
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateValid
	StateInvalid
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateRefreshing:
		return "refreshing"
	default:
		return "uninitialized"
	}
}

// Snapshot 某一时刻的会话与用户数据，字段均为副本
type Snapshot struct {
	State       State              `json:"state"`
	Session     *backend.Session   `json:"session,omitempty"`
	User        *backend.User      `json:"user,omitempty"`
	Profile     *model.Profile     `json:"profile,omitempty"`
	UserProfile *model.UserProfile `json:"user_profile,omitempty"`
	Agent       *model.Agent       `json:"agent,omitempty"`
	Company     *model.Company     `json:"company,omitempty"`
	Preset      preset.Preset      `json:"preset"`
	DataLoaded  bool               `json:"data_loaded"`
}

// CompanyID 当前用户所属公司，未加载时为空
func (s Snapshot) CompanyID() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.CompanyID
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
