//go:build wireinject
// +build wireinject

package main

import (
	"payment-service/internal/biz"
	"payment-service/internal/conf"
	"payment-service/internal/data"
	"payment-service/internal/devicetoken"
	"payment-service/internal/gateway/plugins"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp 初始化应用
func wireApp(*conf.Bootstrap, log.Logger) (*CronApp, func(), error) {
	panic(wire.Build(
		// 插件注册表与设备令牌（OrderUseCase 依赖）
		plugins.ProviderSet,
		devicetoken.ProviderSet,

		data.ProviderSet,
		biz.ProviderSet,

		// App 结构
		wire.Struct(new(CronApp), "*"),
	))
}
