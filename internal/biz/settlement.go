package biz

import (
	"context"

	"payment-service/internal/constants"
	"payment-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// SettlementLogRepo payment.settled 消费记录
type SettlementLogRepo interface {
	// Record 批量写入，已存在的 trade_no 忽略；返回本次新写入的事件
	Record(ctx context.Context, events []*SettledEvent) ([]*SettledEvent, error)
}

// SettlementUseCase 处理 MQ 投递的结算事件
type SettlementUseCase struct {
	repo  SettlementLogRepo
	hooks *PaymentHooks
	log   *log.Helper
}

// NewSettlementUseCase 创建结算事件 UseCase，并注册结算统计订阅方
func NewSettlementUseCase(repo SettlementLogRepo, hooks *PaymentHooks, logger log.Logger) *SettlementUseCase {
	uc := &SettlementUseCase{
		repo:  repo,
		hooks: hooks,
		log:   log.NewHelper(logger),
	}
	hooks.SettledAsync.On("metrics", uc.record)
	return uc
}

func (uc *SettlementUseCase) record(ctx context.Context, e *SettledEvent) error {
	label := OrderTypeLabel(e.Type)
	m := metrics.GetMetrics()
	m.SettledConsumedTotal.WithLabelValues(label).Inc()
	m.SettledAmountTotal.WithLabelValues(label).Add(float64(e.TotalAmount + e.HandlingAmount))
	uc.log.WithContext(ctx).Infof("settled event consumed: trade_no=%s, type=%s, user_id=%d, amount=%d",
		e.TradeNo, label, e.UserID, e.TotalAmount+e.HandlingAmount)
	return nil
}

// OrderTypeLabel 订单类型的指标标签
func OrderTypeLabel(t int) string {
	switch t {
	case constants.OrderTypeDeposit:
		return "deposit"
	case constants.OrderTypeSubscribe:
		return "subscribe"
	default:
		return "other"
	}
}

// Consume 记录事件并触发异步订阅方；重复投递的事件不会再次触发
func (uc *SettlementUseCase) Consume(ctx context.Context, events []*SettledEvent) error {
	if len(events) == 0 {
		return nil
	}
	fresh, err := uc.repo.Record(ctx, events)
	if err != nil {
		return err
	}
	for _, e := range fresh {
		uc.hooks.SettledAsync.Emit(ctx, e)
	}
	if skipped := len(events) - len(fresh); skipped > 0 {
		uc.log.WithContext(ctx).Infof("settled events deduplicated: received=%d, skipped=%d", len(events), skipped)
	}
	return nil
}
