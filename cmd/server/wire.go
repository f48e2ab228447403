//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"payment-service/internal/biz"
	"payment-service/internal/conf"
	"payment-service/internal/data"
	"payment-service/internal/devicetoken"
	"payment-service/internal/gateway/plugins"
	"payment-service/internal/server"
	"payment-service/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		plugins.ProviderSet,
		devicetoken.ProviderSet,
		newApp,
	))
}
