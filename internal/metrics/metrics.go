package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics 支付服务指标
type PaymentMetrics struct {
	// 出站支付
	PayTotal    *prometheus.CounterVec   // 发起支付总数（按支付方式、结果）
	PayDuration *prometheus.HistogramVec // 发起支付耗时（含网关请求）

	// 网关请求
	UpstreamDuration *prometheus.HistogramVec // 网关 HTTP 请求耗时（按插件）

	// 回调
	NotifyTotal *prometheus.CounterVec // 回调总数（按支付方式、结果）

	// 结算
	SettleTotal    *prometheus.CounterVec // 结算总数（按结果 success/noop/failed）
	SettleDuration prometheus.Histogram   // 结算耗时

	// payment.settled 消费端
	SettledConsumedTotal *prometheus.CounterVec // 消费的结算事件数（按订单类型）
	SettledAmountTotal   *prometheus.CounterVec // 结算金额累计，单位分（按订单类型）

	// 订单
	OrderCreateTotal *prometheus.CounterVec // 创建订单总数（按结果）
	OrderCancelTotal prometheus.Counter     // 取消订单总数

	// 试用令牌
	TrialTokenTotal *prometheus.CounterVec // 试用令牌校验（按结果）

	// 分布式锁
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewPaymentMetrics 创建支付服务指标
func NewPaymentMetrics() *PaymentMetrics {
	return &PaymentMetrics{
		PayTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_pay_total",
				Help: "Total number of outbound payment requests",
			},
			[]string{"method", "result"}, // result: success/failed/free
		),
		PayDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_pay_duration_seconds",
				Help:    "Duration of outbound payment requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		UpstreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_upstream_duration_seconds",
				Help:    "Duration of gateway HTTP calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"plugin"},
		),
		NotifyTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_notify_total",
				Help: "Total number of gateway callbacks",
			},
			[]string{"method", "result"}, // result: success/rejected/failed
		),
		SettleTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_settle_total",
				Help: "Total number of settlement attempts",
			},
			[]string{"result"}, // result: success/noop/failed
		),
		SettleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "payment_settle_duration_seconds",
				Help:    "Duration of settlement transactions",
				Buckets: prometheus.DefBuckets,
			},
		),
		SettledConsumedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_settled_consumed_total",
				Help: "Total number of payment.settled events consumed",
			},
			[]string{"type"}, // type: deposit/subscribe/other
		),
		SettledAmountTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_settled_amount_total",
				Help: "Settled amount in minor units",
			},
			[]string{"type"},
		),
		OrderCreateTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_order_create_total",
				Help: "Total number of order creations",
			},
			[]string{"result"},
		),
		OrderCancelTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_order_cancel_total",
				Help: "Total number of cancelled orders",
			},
		),
		TrialTokenTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_trial_token_total",
				Help: "Total number of device trial token checks",
			},
			[]string{"result"},
		),
		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "payment_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}, // 毫秒级
			},
		),
	}
}

// 全局指标实例
var (
	defaultMetrics *PaymentMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例（promauto 注册只能进行一次）
func GetMetrics() *PaymentMetrics {
	once.Do(func() {
		defaultMetrics = NewPaymentMetrics()
	})
	return defaultMetrics
}
