package biz

import (
	"context"
	"time"

	"payment-service/internal/constants"
	"payment-service/internal/gateway"
	"payment-service/internal/hook"

	"github.com/go-kratos/kratos/v2/log"
)

// NotifyEvent 回调生命周期事件载荷
type NotifyEvent struct {
	Method       string
	PublicID     string
	Callback     *gateway.Callback
	Verification *gateway.Verification
	// Order 结算后的订单快照，仅 success 事件有效
	Order *Order
	// Err 处理失败原因，after 事件中可用
	Err error
}

// SettledEvent 订单结算事件（MQ 消息体）
type SettledEvent struct {
	OrderID        int64     `json:"order_id"`
	TradeNo        string    `json:"trade_no"`
	CallbackNo     string    `json:"callback_no"`
	UserID         int64     `json:"user_id"`
	PlanID         int64     `json:"plan_id"`
	PaymentID      int64     `json:"payment_id"`
	Type           int       `json:"type"`
	Period         string    `json:"period"`
	TotalAmount    int64     `json:"total_amount"`
	HandlingAmount int64     `json:"handling_amount"`
	PaidAt         time.Time `json:"paid_at"`
}

// NewSettledEvent 由订单快照生成事件
func NewSettledEvent(o *Order) *SettledEvent {
	e := &SettledEvent{
		OrderID:        o.ID,
		TradeNo:        o.TradeNo,
		CallbackNo:     o.CallbackNo,
		UserID:         o.UserID,
		PlanID:         o.PlanID,
		PaymentID:      o.PaymentID,
		Type:           o.Type,
		Period:         o.Period,
		TotalAmount:    o.TotalAmount,
		HandlingAmount: o.HandlingAmount,
	}
	if o.PaidAt != nil {
		e.PaidAt = *o.PaidAt
	}
	return e
}

// PaymentHooks 支付相关扩展点，进程内唯一，由编排层与结算状态机共享
type PaymentHooks struct {
	Methods *hook.Filters[gateway.Methods]

	// NotifyBefore / NotifyVerified 可通过返回错误否决，发生在任何状态变更之前
	NotifyBefore   *hook.Actions[*NotifyEvent]
	NotifyVerified *hook.Actions[*NotifyEvent]
	NotifySuccess  *hook.Actions[*NotifyEvent]
	NotifyFailed   *hook.Actions[*NotifyEvent]
	NotifyAfter    *hook.Actions[*NotifyEvent]

	// Settled 订单进入已支付后触发一次，处理失败只记录日志
	Settled *hook.Actions[*Order]
	// SettledAsync 由 MQ 消费端触发，供跨进程订阅方使用
	SettledAsync *hook.Actions[*SettledEvent]
}

// NewPaymentHooks 创建扩展点并启动插件注册
func NewPaymentHooks(registry *gateway.Registry, logger log.Logger) *PaymentHooks {
	h := &PaymentHooks{
		Methods:        hook.NewFilters[gateway.Methods](constants.HookAvailablePaymentMethods),
		NotifyBefore:   hook.NewActions[*NotifyEvent](constants.HookNotifyBefore, logger),
		NotifyVerified: hook.NewActions[*NotifyEvent](constants.HookNotifyVerified, logger),
		NotifySuccess:  hook.NewActions[*NotifyEvent](constants.HookNotifySuccess, logger),
		NotifyFailed:   hook.NewActions[*NotifyEvent](constants.HookNotifyFailed, logger),
		NotifyAfter:    hook.NewActions[*NotifyEvent](constants.HookNotifyAfter, logger),
		Settled:        hook.NewActions[*Order](constants.HookSettled, logger),
		SettledAsync:   hook.NewActions[*SettledEvent](constants.HookSettled+".async", logger),
	}
	if registry != nil {
		registry.Boot(h.Methods)
	}

	helper := log.NewHelper(logger)
	h.NotifyFailed.On("log", func(ctx context.Context, e *NotifyEvent) error {
		reason := ""
		if e.Verification != nil {
			reason = e.Verification.Reason
		}
		helper.WithContext(ctx).Warnf("payment notify rejected: method=%s, uuid=%s, order_no=%s, reason=%s",
			e.Method, e.PublicID, orderNoHint(e.Callback), reason)
		return nil
	})
	return h
}

// AvailableMethods 重新聚合支付方式（每次调用重建）
func (h *PaymentHooks) AvailableMethods(ctx context.Context) gateway.Methods {
	return h.Methods.Apply(ctx, gateway.Methods{})
}

func orderNoHint(cb *gateway.Callback) string {
	for _, k := range []string{"order_no", "out_trade_no", "trade_no"} {
		if v := cb.Param(k); v != "" {
			return v
		}
	}
	return ""
}
