// Package plugins assembles the closed set of gateway plugins from
// configuration.
package plugins

import (
	"payment-service/internal/conf"
	"payment-service/internal/gateway"
	"payment-service/internal/gateway/epay"
	"payment-service/internal/gateway/tangchao"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is gateway plugin providers.
var ProviderSet = wire.NewSet(NewRegistry)

// NewRegistry 根据 payment.plugins 配置构建插件注册表；未配置的插件视为停用
func NewRegistry(c *conf.Bootstrap, logger log.Logger) *gateway.Registry {
	var pc *conf.Payment
	if c != nil {
		pc = c.Payment
	}
	plugin := func(code string) *conf.Plugin {
		if pc == nil || pc.Plugins == nil || pc.Plugins[code] == nil {
			return &conf.Plugin{}
		}
		return pc.Plugins[code]
	}

	httpOpts := gateway.HTTPOptions{}
	if pc != nil {
		httpOpts.ConnectTimeout = pc.ConnectTimeout.AsDuration()
		httpOpts.Timeout = pc.Timeout.AsDuration()
	}

	tc := plugin(tangchao.Code)
	ep := plugin(epay.Code)
	return gateway.NewRegistry(
		tangchao.New(tangchao.Options{
			Enabled:     tc.Enabled,
			DisplayName: tc.DisplayName,
			Icon:        tc.Icon,
			GatewayURL:  tc.GatewayURL,
			HTTP:        httpOpts,
		}, logger),
		epay.New(epay.Options{
			Enabled:     ep.Enabled,
			DisplayName: ep.DisplayName,
			Icon:        ep.Icon,
		}, logger),
	)
}
