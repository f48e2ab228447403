package biz

import (
	"context"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewPaymentHooks,
	NewOrderUseCase,
	NewPaymentUseCase,
	NewPaymentConfigUseCase,
	NewSettlementUseCase,
)

// Transaction 数据层事务，事务对象通过 ctx 传递给各 repo
type Transaction interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker 分布式锁
type Locker interface {
	// Lock 获取 key 对应的锁，返回释放函数
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SettledPublisher 结算事件投递（MQ）
type SettledPublisher interface {
	PublishSettled(ctx context.Context, event *SettledEvent) error
}
