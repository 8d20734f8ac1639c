// Package model 后端表对应的实体。JSON 字段名与表列名一致。
package model

import (
	"strings"
	"time"
)

// 后端表名
const (
	TableProfiles      = "profiles"
	TableAgents        = "agente"
	TableCompanies     = "empresa"
	TableProperties    = "propiedad"
	TableOpportunities = "oportunidades"
	TableProspects     = "prospecto"
	TableOwners        = "propietario"
	TableInvitations   = "user_invitations"
)

// Keyed 可按 id 定位的实体
type Keyed interface {
	Key() string
}

// Profile profiles 表
type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CompanyID   string    `json:"empresa_id,omitempty"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Profile) Key() string { return p.ID }

// UserProfile 由 profiles 行派生的只读用户信息
type UserProfile struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// NewUserProfile full_name 第一个词为名，其余为姓
func NewUserProfile(userID, email string, p Profile) UserProfile {
	first, last := "", ""
	if fields := strings.Fields(p.FullName); len(fields) > 0 {
		first = fields[0]
		last = strings.Join(fields[1:], " ")
	}
	return UserProfile{UserID: userID, Email: email, FirstName: first, LastName: last, Phone: p.Phone}
}

// Agent agente 表
type Agent struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"nombre"`
	LastName    string    `json:"apellido,omitempty"`
	Email       string    `json:"email"`
	Phone       int64     `json:"telefono"`
	DialingCode int       `json:"codigo_telefonico,omitempty"`
	CompanyID   string    `json:"empresa_id"`
	UserUID     string    `json:"user_uid"`
	Active      bool      `json:"activo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a Agent) Key() string { return a.ID }

// Company empresa 表
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	RUT       string    `json:"rut,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"telefono,omitempty"`
	Address   string    `json:"direccion,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Company) Key() string { return c.ID }
