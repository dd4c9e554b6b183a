package health

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func check(name string, err error) CheckFunc {
	return NewCheckFunc(name, func(context.Context) error { return err })
}

func TestRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		critical []CheckFunc
		optional []CheckFunc
		want     Status
	}{
		{name: "no checks", want: StatusHealthy},
		{
			name:     "all passing",
			critical: []CheckFunc{check("engine", nil)},
			optional: []CheckFunc{check("redis", nil)},
			want:     StatusHealthy,
		},
		{
			name:     "optional failing",
			critical: []CheckFunc{check("engine", nil)},
			optional: []CheckFunc{check("redis", fmt.Errorf("redis ping failed"))},
			want:     StatusDegraded,
		},
		{
			name:     "critical failing",
			critical: []CheckFunc{check("engine", fmt.Errorf("engine not initialized"))},
			optional: []CheckFunc{check("redis", fmt.Errorf("redis ping failed"))},
			want:     StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			for _, c := range tt.critical {
				registry.Register(c)
			}
			for _, c := range tt.optional {
				registry.RegisterOptional(c)
			}

			h := registry.Check(context.Background())

			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.critical)+len(tt.optional))
		})
	}
}

func TestRegistry_CheckResultDetails(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterOptional(check("postgresql", fmt.Errorf("postgresql ping failed: refused")))

	result := registry.Check(context.Background()).Checks["postgresql"]

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.False(t, result.Critical)
	assert.Equal(t, "postgresql ping failed: refused", result.Message)
	assert.False(t, result.Timestamp.IsZero())
}
