package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	r := NewResolver(WithUser("cristobal-uid", Coworking), WithDomain("@Partner.cl", Coworking))

	tests := []struct {
		name   string
		userID string
		email  string
		want   Preset
	}{
		{"user mapping", "cristobal-uid", "cristobal@gmail.com", Coworking},
		{"cowork domain", "u2", "ana@nubecowork.cl", Coworking},
		{"domain case", "u3", "luis@NubeCowork.CL", Coworking},
		{"extra domain", "u4", "x@partner.cl", Coworking},
		{"default", "u5", "paula@rentoso.cl", Inmobiliaria},
		{"no email", "u6", "", Inmobiliaria},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.userID, tt.email))
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Propiedades", Inmobiliaria.Label("Propiedades", "Espacios"))
	assert.Equal(t, "Espacios", Coworking.Label("Propiedades", "Espacios"))
	assert.Equal(t, "Propiedades", Coworking.Label("Propiedades", ""))
}

func TestParse(t *testing.T) {
	p, err := Parse(" Coworking ")
	require.NoError(t, err)
	assert.Equal(t, Coworking, p)

	p, err = Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default, p)

	_, err = Parse("hotel")
	assert.Error(t, err)
}
