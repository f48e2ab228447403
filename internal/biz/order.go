package biz

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"payment-service/internal/conf"
	"payment-service/internal/constants"
	"payment-service/internal/devicetoken"
	payErrors "payment-service/internal/errors"
	"payment-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// Order 订单领域对象
type Order struct {
	ID             int64
	UserID         int64
	PlanID         int64
	PaymentID      int64
	Period         string
	TradeNo        string
	CallbackNo     string
	TotalAmount    int64 // 分
	HandlingAmount int64 // 分
	Type           int
	Status         int
	DeviceID       string
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PayableAmount 实际需支付金额（含手续费）
func (o *Order) PayableAmount() int64 {
	return o.TotalAmount + o.HandlingAmount
}

// Plan 订阅计划
type Plan struct {
	ID      int64
	Name    string
	Prices  map[string]int64 // 周期 -> 价格（分）
	IsTrial bool
	Sell    bool
}

// Price 返回周期价格
func (p *Plan) Price(period string) (int64, bool) {
	if p == nil || p.Prices == nil {
		return 0, false
	}
	v, ok := p.Prices[period]
	return v, ok
}

// TrialBinding 设备试用绑定
type TrialBinding struct {
	PlanID   int64
	DeviceID string
	OrderID  *int64
}

// OrderRepo 订单数据层接口（定义在 biz 层）
// 查询不到记录时返回 nil, nil。
type OrderRepo interface {
	GetByTradeNo(ctx context.Context, tradeNo string) (*Order, error)
	GetUserOrder(ctx context.Context, userID int64, tradeNo string) (*Order, error)
	// LockByTradeNo 事务内 SELECT ... FOR UPDATE
	LockByTradeNo(ctx context.Context, tradeNo string) (*Order, error)
	HasPendingOrder(ctx context.Context, userID int64) (bool, error)
	ListPending(ctx context.Context, userID int64) ([]*Order, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*Order, error)
	// Create 创建订单，binding 非空时在同一事务内写入试用绑定
	Create(ctx context.Context, order *Order, binding *TrialBinding) error
	// UpdatePayment 记录支付配置与手续费，仅对待支付订单生效
	UpdatePayment(ctx context.Context, tradeNo string, paymentID int64, handlingAmount int64) error
	// TransitionStatus 条件更新 status=from -> to，返回是否更新成功
	TransitionStatus(ctx context.Context, tradeNo string, from, to int, callbackNo string, at time.Time) (bool, error)
}

// PlanRepo 订阅计划数据层接口
type PlanRepo interface {
	GetPlan(ctx context.Context, id int64) (*Plan, error)
	TrialUsed(ctx context.Context, planID int64, deviceID string) (bool, error)
}

// FulfillmentRepo 订单支付成功后的权益发放，必须使用 ctx 中的事务
type FulfillmentRepo interface {
	CreditBalance(ctx context.Context, userID int64, amount int64) error
	ExtendSubscription(ctx context.Context, userID, planID int64, period string, from time.Time) error
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	UserID      int64
	PlanID      int64
	Period      string
	DeviceToken string
}

// OrderUseCase 订单状态机
type OrderUseCase struct {
	repo       OrderRepo
	plans      PlanRepo
	fulfill    FulfillmentRepo
	tx         Transaction
	locker     Locker
	verifier   *devicetoken.Verifier
	hooks      *PaymentHooks
	log        *log.Helper
	metrics    *metrics.PaymentMetrics
	pendingTTL time.Duration
	now        func() time.Time
}

// NewOrderUseCase 创建订单 UseCase；publisher 非空时注册为 payment.settled 订阅方
func NewOrderUseCase(
	repo OrderRepo,
	plans PlanRepo,
	fulfill FulfillmentRepo,
	tx Transaction,
	locker Locker,
	verifier *devicetoken.Verifier,
	hooks *PaymentHooks,
	publisher SettledPublisher,
	c *conf.Bootstrap,
	logger log.Logger,
) *OrderUseCase {
	uc := &OrderUseCase{
		repo:       repo,
		plans:      plans,
		fulfill:    fulfill,
		tx:         tx,
		locker:     locker,
		verifier:   verifier,
		hooks:      hooks,
		log:        log.NewHelper(logger),
		metrics:    metrics.GetMetrics(),
		pendingTTL: 2 * time.Hour,
		now:        time.Now,
	}
	if c != nil && c.Cron != nil && c.Cron.PendingTTL.AsDuration() > 0 {
		uc.pendingTTL = c.Cron.PendingTTL.AsDuration()
	}
	if publisher != nil {
		hooks.Settled.On("mq", func(ctx context.Context, o *Order) error {
			return publisher.PublishSettled(ctx, NewSettledEvent(o))
		})
	}
	return uc
}

// Settle 将订单从待支付迁移到已支付，并发放权益。
// 非待支付状态直接返回成功；权益发放失败时整体回滚，订单保持待支付。
// payment.settled 仅在本次调用实际完成迁移时触发。
func (uc *OrderUseCase) Settle(ctx context.Context, tradeNo, callbackNo string) error {
	start := time.Now()

	if uc.locker != nil {
		lockStart := time.Now()
		unlock, err := uc.locker.Lock(ctx, constants.RedisKeySettleLock+tradeNo)
		if uc.metrics != nil {
			uc.metrics.LockAcquireDuration.Observe(time.Since(lockStart).Seconds())
		}
		if err != nil {
			uc.log.WithContext(ctx).Errorf("acquire settle lock failed: trade_no=%s, error=%v", tradeNo, err)
			if uc.metrics != nil {
				uc.metrics.LockAcquireTotal.WithLabelValues(constants.ResultFailed).Inc()
			}
			return payErrors.ErrSettleBusy.WithCause(err)
		}
		if uc.metrics != nil {
			uc.metrics.LockAcquireTotal.WithLabelValues(constants.ResultSuccess).Inc()
		}
		defer unlock()
	}

	var (
		settled     *Order
		transitions bool
	)
	err := uc.tx.InTx(ctx, func(ctx context.Context) error {
		order, err := uc.repo.LockByTradeNo(ctx, tradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return payErrors.ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPending {
			settled = order
			return nil
		}

		paidAt := uc.now()
		ok, err := uc.repo.TransitionStatus(ctx, tradeNo, constants.OrderStatusPending, constants.OrderStatusPaid, callbackNo, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			// 并发请求已完成迁移
			settled = order
			return nil
		}

		if err := uc.fulfillOrder(ctx, order, paidAt); err != nil {
			return err
		}

		order.Status = constants.OrderStatusPaid
		order.CallbackNo = callbackNo
		order.PaidAt = &paidAt
		settled = order
		transitions = true
		return nil
	})
	if uc.metrics != nil {
		uc.metrics.SettleDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		uc.log.WithContext(ctx).Errorf("settle failed: trade_no=%s, error=%v", tradeNo, err)
		if uc.metrics != nil {
			uc.metrics.SettleTotal.WithLabelValues(constants.ResultFailed).Inc()
		}
		return err
	}

	if !transitions {
		uc.log.WithContext(ctx).Infof("order already processed: trade_no=%s, status=%d", tradeNo, settled.Status)
		if uc.metrics != nil {
			uc.metrics.SettleTotal.WithLabelValues(constants.ResultNoop).Inc()
		}
		return nil
	}

	if uc.metrics != nil {
		uc.metrics.SettleTotal.WithLabelValues(constants.ResultSuccess).Inc()
	}
	uc.log.WithContext(ctx).Infof("order settled: trade_no=%s, callback_no=%s, user_id=%d", tradeNo, callbackNo, settled.UserID)
	uc.hooks.Settled.Emit(ctx, settled)
	return nil
}

func (uc *OrderUseCase) fulfillOrder(ctx context.Context, o *Order, paidAt time.Time) error {
	if uc.fulfill == nil {
		return nil
	}
	switch o.Type {
	case constants.OrderTypeDeposit:
		return uc.fulfill.CreditBalance(ctx, o.UserID, o.TotalAmount)
	default:
		if o.PlanID == 0 {
			return nil
		}
		return uc.fulfill.ExtendSubscription(ctx, o.UserID, o.PlanID, o.Period, paidAt)
	}
}

// Cancel 用户取消订单，仅允许从待支付迁移
func (uc *OrderUseCase) Cancel(ctx context.Context, userID int64, tradeNo string) error {
	order, err := uc.repo.GetUserOrder(ctx, userID, tradeNo)
	if err != nil {
		return err
	}
	if order == nil {
		return payErrors.ErrOrderNotFound
	}
	return uc.cancel(ctx, order)
}

func (uc *OrderUseCase) cancel(ctx context.Context, order *Order) error {
	if order.Status != constants.OrderStatusPending {
		return payErrors.InvalidTransition(order.TradeNo, order.Status, constants.OrderStatusCancelled)
	}
	ok, err := uc.repo.TransitionStatus(ctx, order.TradeNo, constants.OrderStatusPending, constants.OrderStatusCancelled, "", uc.now())
	if err != nil {
		return err
	}
	if !ok {
		current, err := uc.repo.GetByTradeNo(ctx, order.TradeNo)
		if err != nil {
			return err
		}
		from := constants.OrderStatusOther
		if current != nil {
			from = current.Status
		}
		return payErrors.InvalidTransition(order.TradeNo, from, constants.OrderStatusCancelled)
	}
	if uc.metrics != nil {
		uc.metrics.OrderCancelTotal.Inc()
	}
	uc.log.WithContext(ctx).Infof("order cancelled: trade_no=%s, user_id=%d", order.TradeNo, order.UserID)
	return nil
}

// ExpirePending 取消超时未支付的订单，返回取消数量
func (uc *OrderUseCase) ExpirePending(ctx context.Context, limit int) (int, error) {
	orders, err := uc.repo.ListPendingBefore(ctx, uc.now().Add(-uc.pendingTTL), limit)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, o := range orders {
		if err := uc.cancel(ctx, o); err != nil {
			// 过期扫描期间被支付的订单会走到这里
			uc.log.WithContext(ctx).Warnf("expire pending order skipped: trade_no=%s, error=%v", o.TradeNo, err)
			continue
		}
		count++
	}
	return count, nil
}

// Create 创建订阅订单；试用计划必须携带有效设备令牌且该设备未使用过试用
func (uc *OrderUseCase) Create(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	order, err := uc.create(ctx, req)
	if uc.metrics != nil {
		result := constants.ResultSuccess
		if err != nil {
			result = constants.ResultFailed
		}
		uc.metrics.OrderCreateTotal.WithLabelValues(result).Inc()
	}
	return order, err
}

func (uc *OrderUseCase) create(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	pending, err := uc.repo.HasPendingOrder(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, payErrors.ErrPendingOrderExists
	}

	plan, err := uc.plans.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.Sell {
		return nil, payErrors.ErrPlanNotFound
	}
	// 只接受结算时能顺延订阅的周期
	if !ValidPeriod(req.Period) {
		return nil, payErrors.ErrInvalidPeriod
	}
	price, ok := plan.Price(req.Period)
	if !ok {
		return nil, payErrors.ErrInvalidPeriod
	}

	var binding *TrialBinding
	deviceID := ""
	if plan.IsTrial {
		deviceID, err = uc.VerifyTrialDevice(ctx, plan.ID, req.DeviceToken)
		if err != nil {
			return nil, err
		}
		binding = &TrialBinding{PlanID: plan.ID, DeviceID: deviceID}
	}

	order := &Order{
		UserID:      req.UserID,
		PlanID:      plan.ID,
		Period:      req.Period,
		TradeNo:     GenerateTradeNo(uc.now()),
		TotalAmount: price,
		Type:        constants.OrderTypeSubscribe,
		Status:      constants.OrderStatusPending,
		DeviceID:    deviceID,
	}
	if err := uc.repo.Create(ctx, order, binding); err != nil {
		return nil, err
	}
	uc.log.WithContext(ctx).Infof("order created: trade_no=%s, user_id=%d, plan_id=%d, trial=%t", order.TradeNo, order.UserID, order.PlanID, plan.IsTrial)
	return order, nil
}

// CreateDeposit 创建余额充值订单
func (uc *OrderUseCase) CreateDeposit(ctx context.Context, userID, amount int64) (*Order, error) {
	if amount <= 0 {
		return nil, payErrors.InvalidArgument("充值金额必须大于 0")
	}
	pending, err := uc.repo.HasPendingOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, payErrors.ErrPendingOrderExists
	}
	order := &Order{
		UserID:      userID,
		Period:      "deposit",
		TradeNo:     GenerateTradeNo(uc.now()),
		TotalAmount: amount,
		Type:        constants.OrderTypeDeposit,
		Status:      constants.OrderStatusPending,
	}
	if err := uc.repo.Create(ctx, order, nil); err != nil {
		return nil, err
	}
	return order, nil
}

// VerifyTrialDevice 解密设备令牌并检查试用资格
func (uc *OrderUseCase) VerifyTrialDevice(ctx context.Context, planID int64, token string) (string, error) {
	result := constants.ResultFailed
	defer func() {
		if uc.metrics != nil {
			uc.metrics.TrialTokenTotal.WithLabelValues(result).Inc()
		}
	}()

	if strings.TrimSpace(token) == "" {
		return "", payErrors.ErrTrialTokenRequired
	}
	deviceID, err := uc.verifier.Decrypt(token)
	if err != nil {
		uc.log.WithContext(ctx).Warnf("device token rejected: plan_id=%d, error=%v", planID, err)
		return "", err
	}
	used, err := uc.plans.TrialUsed(ctx, planID, deviceID)
	if err != nil {
		return "", err
	}
	if used {
		result = constants.ResultRejected
		return "", payErrors.ErrTrialAlreadyUsed
	}
	result = constants.ResultSuccess
	return deviceID, nil
}

// Get 查询用户订单
func (uc *OrderUseCase) Get(ctx context.Context, userID int64, tradeNo string) (*Order, error) {
	order, err := uc.repo.GetUserOrder(ctx, userID, tradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, payErrors.ErrOrderNotFound
	}
	return order, nil
}

// ListPending 用户待支付订单
func (uc *OrderUseCase) ListPending(ctx context.Context, userID int64) ([]*Order, error) {
	return uc.repo.ListPending(ctx, userID)
}

// GenerateTradeNo 生成订单号：时间戳 + 8 位随机数
func GenerateTradeNo(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 100000000)
	}
	return fmt.Sprintf("%s%08d", now.Format("20060102150405"), n.Int64())
}

// periodMonths 订阅周期对应的月数，onetime 视为长期有效
var periodMonths = map[string]int{
	"monthly":      1,
	"quarterly":    3,
	"half_yearly":  6,
	"yearly":       12,
	"two_yearly":   24,
	"three_yearly": 36,
	"onetime":      12 * 100,
}

// ValidPeriod 是否为可结算的订阅周期
func ValidPeriod(period string) bool {
	_, ok := periodMonths[period]
	return ok
}

// ExtendExpiry 从 base（已过期则从 now）开始顺延一个周期
func ExtendExpiry(base, now time.Time, period string) (time.Time, error) {
	months, ok := periodMonths[period]
	if !ok {
		return time.Time{}, payErrors.ErrInvalidPeriod
	}
	if base.Before(now) {
		base = now
	}
	return base.AddDate(0, months, 0), nil
}
