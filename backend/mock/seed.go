package mock

import (
	"fmt"
	"time"

	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/preset"
)

// 演示账号的固定密码
const DemoPassword = "demo123"

// Demo 一个预设的演示账号
type Demo struct {
	UserID    string
	Email     string
	FullName  string
	CompanyID string
	Company   string
	Phone     string
}

var demos = map[preset.Preset]Demo{
	preset.Inmobiliaria: {
		UserID:    "demo-uid",
		Email:     "demo@rentoso.cl",
		FullName:  "Paula Andrea Rojas",
		CompanyID: "empresa-rentoso",
		Company:   "Rentoso Propiedades",
		Phone:     "+56912345678",
	},
	preset.Coworking: {
		UserID:    "cristobal-nubecowork-uid",
		Email:     "cristobal@nubecowork.cl",
		FullName:  "Cristóbal Fuentes",
		CompanyID: "empresa-nubecowork",
		Company:   "Nube Cowork",
		Phone:     "+56987654321",
	},
}

// DemoFor 返回预设对应的演示账号
func DemoFor(p preset.Preset) Demo {
	if d, ok := demos[p]; ok {
		return d
	}
	return demos[preset.Default]
}

// Seed 写入演示账号、档案、公司与业务数据
func (b *Backend) Seed(p preset.Preset) error {
	d := DemoFor(p)
	now := b.clock.Now().UTC().Truncate(time.Second)

	if err := b.auth.AddUser(d.UserID, d.Email, DemoPassword, map[string]any{"full_name": d.FullName}); err != nil {
		return err
	}

	agentID := "agente-" + d.UserID
	seeds := []struct {
		table string
		rows  []any
	}{
		{model.TableProfiles, []any{model.Profile{
			ID: "profile-" + d.UserID, UserID: d.UserID, FullName: d.FullName, CompanyName: d.Company,
			Phone: d.Phone, CompanyID: d.CompanyID, Role: "admin", CreatedAt: now, UpdatedAt: now,
		}}},
		{model.TableCompanies, []any{model.Company{
			ID: d.CompanyID, Name: d.Company, Email: "contacto@" + domainOf(d.Email), CreatedAt: now,
		}}},
		{model.TableAgents, []any{model.Agent{
			ID: agentID, FirstName: firstWord(d.FullName), Email: d.Email, CompanyID: d.CompanyID,
			UserUID: d.UserID, Active: true, DialingCode: 56, CreatedAt: now, UpdatedAt: now,
		}}},
		{model.TableProperties, properties(p, d.CompanyID, agentID, now)},
		{model.TableProspects, prospects(d.CompanyID, now)},
		{model.TableOwners, owners(d.CompanyID, now)},
		{model.TableOpportunities, opportunities(d.CompanyID, agentID, now)},
	}
	for _, s := range seeds {
		if err := b.rows.Put(s.table, s.rows...); err != nil {
			return fmt.Errorf("seed %s: %w", s.table, err)
		}
	}
	b.logger.Info().Str("preset", p.String()).Str("email", d.Email).Msg("demo data seeded")
	return nil
}

func properties(p preset.Preset, companyID, agentID string, now time.Time) []any {
	type item struct {
		title, kind, op, district string
		price                     float64
		currency                  string
	}
	items := []item{
		{"Departamento 2D2B Providencia", "Departamento", "Arriendo", "Providencia", 650000, "CLP"},
		{"Casa familiar en La Reina", "Casa", "Venta", "La Reina", 12500, "UF"},
		{"Oficina en Las Condes", "Oficina", "Arriendo", "Las Condes", 38, "UF"},
		{"Local comercial Ñuñoa", "Local", "Arriendo", "Ñuñoa", 900000, "CLP"},
	}
	if p.IsCoworking() {
		items = []item{
			{"Escritorio flexible", "Hot desk", "Membresía", "Valdivia", 120000, "CLP"},
			{"Oficina privada 4 personas", "Oficina", "Membresía", "Valdivia", 480000, "CLP"},
			{"Sala de reuniones Calle-Calle", "Sala", "Reserva", "Valdivia", 15000, "CLP"},
		}
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		out = append(out, model.Property{
			ID: fmt.Sprintf("%s-prop-%d", companyID, i+1), CompanyID: companyID, AgentID: agentID,
			Title: it.title, Type: it.kind, Status: model.PropertyAvailable, Operation: it.op,
			Price: it.price, Currency: it.currency, District: it.district, Region: "Chile",
			UpdatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func prospects(companyID string, now time.Time) []any {
	names := []string{"Camila Soto", "Diego Muñoz", "Valentina Pérez"}
	out := make([]any, 0, len(names))
	for i, n := range names {
		out = append(out, model.Prospect{
			ID: fmt.Sprintf("%s-pros-%d", companyID, i+1), CompanyID: companyID, Source: "whatsapp",
			Phone: fmt.Sprintf("+5691234500%d", i), DisplayName: n, State: "nuevo",
			FirstSeenAt: now.Add(-72 * time.Hour), LastSeenAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func owners(companyID string, now time.Time) []any {
	names := []string{"Rodrigo Fuentes", "Andrea Lagos"}
	out := make([]any, 0, len(names))
	for i, n := range names {
		out = append(out, model.Owner{
			ID: fmt.Sprintf("%s-own-%d", companyID, i+1), CompanyID: companyID, Name: n,
			Phone: int64(912345600 + i), DialCode: 56, DocumentType: "RUT", CreatedAt: now,
		})
	}
	return out
}

func opportunities(companyID, agentID string, now time.Time) []any {
	stages := []string{model.StageExploration, model.StageVisit, model.StageNegotiation}
	out := make([]any, 0, len(stages))
	for i, st := range stages {
		out = append(out, model.Opportunity{
			ID: fmt.Sprintf("%s-opp-%d", companyID, i+1), CompanyID: companyID, AgentID: agentID,
			ProspectID: fmt.Sprintf("%s-pros-%d", companyID, i+1), PropertyID: fmt.Sprintf("%s-prop-%d", companyID, i+1),
			Stage: st, Status: "abierta", Source: "whatsapp", CreatedAt: now, UpdatedAt: now,
		})
	}
	return out
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return email
}
