package plugins

import (
	"testing"

	"payment-service/internal/conf"
	"payment-service/internal/gateway/epay"
	"payment-service/internal/gateway/tangchao"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistry(&conf.Bootstrap{Payment: &conf.Payment{
		Plugins: map[string]*conf.Plugin{
			tangchao.Code: {Enabled: true},
		},
	}}, log.DefaultLogger)

	p, err := r.Active(tangchao.Code)
	require.NoError(t, err)
	assert.Equal(t, tangchao.Code, p.Code())

	_, err = r.Active(epay.Code)
	assert.Error(t, err, "plugins absent from config stay disabled")
	assert.Len(t, r.Plugins(), 2)
}

func TestNewRegistryNilConfig(t *testing.T) {
	r := NewRegistry(&conf.Bootstrap{}, log.DefaultLogger)
	for _, p := range r.Plugins() {
		assert.False(t, p.Enabled(), p.Code())
	}
}
