package model

import "time"

// 物业状态
const (
	PropertyAvailable = "Disponible"
	PropertyReserved  = "Reservada"
	PropertyRented    = "Arrendada"
	PropertySold      = "Vendida"
)

// 商机阶段
const (
	StageExploration = "Exploracion"
	StageEvaluation  = "Evaluacion"
	StageVisit       = "Visita"
	StageNegotiation = "Negociacion"
	StageClosing     = "Cierre"
)

// Property propiedad 表
type Property struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"empresa_id"`
	AgentID   string    `json:"agente_id,omitempty"`
	Title     string    `json:"titulo"`
	Type      string    `json:"tipo"`
	Status    string    `json:"estado"`
	Operation string    `json:"operacion"`
	Price     float64   `json:"precio"`
	Currency  string    `json:"divisa"`
	Address   string    `json:"direccion,omitempty"`
	District  string    `json:"comuna,omitempty"`
	Region    string    `json:"region,omitempty"`
	Bedrooms  int       `json:"habitaciones,omitempty"`
	Bathrooms int       `json:"banos,omitempty"`
	TotalArea float64   `json:"area_total,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Property) Key() string { return p.ID }

// Opportunity oportunidades 表
type Opportunity struct {
	ID            string    `json:"id"`
	ProspectID    string    `json:"prospecto_id"`
	PropertyID    string    `json:"propiedad_id"`
	AgentID       string    `json:"agente_id"`
	CompanyID     string    `json:"empresa_id"`
	Stage         string    `json:"etapa"`
	Status        string    `json:"status"`
	Source        string    `json:"source,omitempty"`
	InterestPrice *float64  `json:"precio_interes,omitempty"`
	Notes         string    `json:"observaciones,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (o Opportunity) Key() string { return o.ID }

// Owner propietario 表，电话不含国家代码
type Owner struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"empresa_id"`
	Name         string    `json:"nombre"`
	Email        string    `json:"email,omitempty"`
	Phone        int64     `json:"telefono,omitempty"`
	DialCode     int       `json:"codigo_telefonico,omitempty"`
	DocumentType string    `json:"tipo_documento,omitempty"`
	Document     string    `json:"documento,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (o Owner) Key() string { return o.ID }

// Prospect prospecto 表，empresa_id 用于按租户过滤
type Prospect struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"empresa_id"`
	Source      string    `json:"source"`
	Phone       string    `json:"phone_e164"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	State       string    `json:"estado,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

func (p Prospect) Key() string { return p.ID }

// Invitation user_invitations 表
type Invitation struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	CompanyID string    `json:"empresa_id"`
	InvitedBy string    `json:"invited_by"`
	Status    string    `json:"status,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (i Invitation) Key() string { return i.ID }
