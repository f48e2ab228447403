package data

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payment-service/internal/biz"
	"payment-service/internal/conf"
	"payment-service/internal/constants"
	"payment-service/internal/data/model"
	"payment-service/internal/devicetoken"
	payErrors "payment-service/internal/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	data *Data
	db   *gorm.DB
	rdb  *redis.Client
	mr   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	d, cleanup, err := NewData(log.DefaultLogger, db, rdb)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return &testEnv{data: d, db: db, rdb: rdb, mr: mr}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*biz.SettledEvent
}

func (p *recordingPublisher) PublishSettled(_ context.Context, e *biz.SettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (e *testEnv) orderUseCase(t *testing.T, pub biz.SettledPublisher) *biz.OrderUseCase {
	t.Helper()
	v, err := devicetoken.NewVerifier("")
	require.NoError(t, err)
	c := &conf.Bootstrap{Payment: &conf.Payment{SettleLockExpiry: conf.NewDuration(5 * time.Second)}}
	hooks := biz.NewPaymentHooks(nil, log.DefaultLogger)
	return biz.NewOrderUseCase(
		NewOrderRepo(e.data, log.DefaultLogger),
		NewPlanRepo(e.data, log.DefaultLogger),
		NewFulfillmentRepo(e.data, log.DefaultLogger),
		NewTransaction(e.data),
		NewSettleLocker(NewRedsync(e.rdb), c, log.DefaultLogger),
		v,
		hooks,
		pub,
		c,
		log.DefaultLogger,
	)
}

func (e *testEnv) seedOrder(t *testing.T, o model.Order) model.Order {
	t.Helper()
	if o.Period == "" {
		o.Period = "monthly"
	}
	require.NoError(t, e.db.Create(&o).Error)
	return o
}

func TestOrderRepoTransitionStatusIsConditional(t *testing.T) {
	env := newTestEnv(t)
	repo := NewOrderRepo(env.data, log.DefaultLogger)
	ctx := context.Background()
	env.seedOrder(t, model.Order{UserID: 1, TradeNo: "T1", TotalAmount: 100})

	ok, err := repo.TransitionStatus(ctx, "T1", constants.OrderStatusPending, constants.OrderStatusPaid, "CB1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, "T1", constants.OrderStatusPending, constants.OrderStatusCancelled, "", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	o, err := repo.GetByTradeNo(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusPaid, o.Status)
	assert.Equal(t, "CB1", o.CallbackNo)
	assert.NotNil(t, o.PaidAt)
}

func TestOrderRepoGetMissing(t *testing.T) {
	env := newTestEnv(t)
	repo := NewOrderRepo(env.data, log.DefaultLogger)
	o, err := repo.GetByTradeNo(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, o)

	env.seedOrder(t, model.Order{UserID: 1, TradeNo: "T1", TotalAmount: 100})
	o, err = repo.GetUserOrder(context.Background(), 2, "T1")
	require.NoError(t, err)
	assert.Nil(t, o, "other user's order must not be visible")
}

func TestOrderRepoCreateWithTrialBinding(t *testing.T) {
	env := newTestEnv(t)
	repo := NewOrderRepo(env.data, log.DefaultLogger)
	ctx := context.Background()

	first := &biz.Order{UserID: 1, PlanID: 7, Period: "monthly", TradeNo: "T1", Type: constants.OrderTypeSubscribe, DeviceID: "d1"}
	binding := &biz.TrialBinding{PlanID: 7, DeviceID: "d1"}
	require.NoError(t, repo.Create(ctx, first, binding))
	assert.NotZero(t, first.ID)
	require.NotNil(t, binding.OrderID)
	assert.Equal(t, first.ID, *binding.OrderID)

	second := &biz.Order{UserID: 2, PlanID: 7, Period: "monthly", TradeNo: "T2", Type: constants.OrderTypeSubscribe, DeviceID: "d1"}
	err := repo.Create(ctx, second, &biz.TrialBinding{PlanID: 7, DeviceID: "d1"})
	assert.True(t, errors.Is(err, payErrors.ErrTrialAlreadyUsed))

	// 绑定失败时订单一并回滚
	o, err := repo.GetByTradeNo(ctx, "T2")
	require.NoError(t, err)
	assert.Nil(t, o)

	used, err := NewPlanRepo(env.data, log.DefaultLogger).TrialUsed(ctx, 7, "d1")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestOrderRepoListPendingBefore(t *testing.T) {
	env := newTestEnv(t)
	repo := NewOrderRepo(env.data, log.DefaultLogger)
	old := time.Now().Add(-3 * time.Hour)
	env.seedOrder(t, model.Order{UserID: 1, TradeNo: "OLD", TotalAmount: 100, CreatedAt: old})
	env.seedOrder(t, model.Order{UserID: 2, TradeNo: "NEW", TotalAmount: 100})
	env.seedOrder(t, model.Order{UserID: 3, TradeNo: "PAID", TotalAmount: 100, Status: constants.OrderStatusPaid, CreatedAt: old})

	orders, err := repo.ListPendingBefore(context.Background(), time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "OLD", orders[0].TradeNo)
}

func TestSettleDepositCreditsBalanceOnce(t *testing.T) {
	env := newTestEnv(t)
	pub := &recordingPublisher{}
	uc := env.orderUseCase(t, pub)
	env.seedOrder(t, model.Order{UserID: 42, TradeNo: "D1", TotalAmount: 1500, Type: constants.OrderTypeDeposit, Period: "deposit"})

	const workers = 8
	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := uc.Settle(context.Background(), "D1", "CB-1"); err != nil {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, failures)

	var balance model.UserBalance
	require.NoError(t, env.db.Where("user_id = ?", 42).First(&balance).Error)
	assert.Equal(t, int64(1500), balance.Balance)
	assert.Equal(t, 1, pub.count(), "settled event must be published exactly once")

	var o model.Order
	require.NoError(t, env.db.Where("trade_no = ?", "D1").First(&o).Error)
	assert.Equal(t, constants.OrderStatusPaid, o.Status)
	assert.Equal(t, "CB-1", o.CallbackNo)
}

func TestSettleExtendsSubscription(t *testing.T) {
	env := newTestEnv(t)
	uc := env.orderUseCase(t, &recordingPublisher{})
	env.seedOrder(t, model.Order{UserID: 5, PlanID: 3, TradeNo: "S1", TotalAmount: 1000, Type: constants.OrderTypeSubscribe, Period: "quarterly"})

	require.NoError(t, uc.Settle(context.Background(), "S1", "CB"))

	var sub model.Subscription
	require.NoError(t, env.db.Where("user_id = ?", 5).First(&sub).Error)
	assert.Equal(t, int64(3), sub.PlanID)
	assert.WithinDuration(t, time.Now().AddDate(0, 3, 0), sub.ExpiredAt, time.Minute)
}

func TestSettleRollsBackWhenFulfillmentFails(t *testing.T) {
	env := newTestEnv(t)
	pub := &recordingPublisher{}
	uc := env.orderUseCase(t, pub)
	env.seedOrder(t, model.Order{UserID: 5, PlanID: 3, TradeNo: "S1", TotalAmount: 1000, Type: constants.OrderTypeSubscribe, Period: "weekly"})

	err := uc.Settle(context.Background(), "S1", "CB")
	require.Error(t, err)

	var o model.Order
	require.NoError(t, env.db.Where("trade_no = ?", "S1").First(&o).Error)
	assert.Equal(t, constants.OrderStatusPending, o.Status)
	assert.Empty(t, o.CallbackNo)
	assert.Zero(t, pub.count())
}

func TestCreateRejectsUnsettleablePeriod(t *testing.T) {
	env := newTestEnv(t)
	uc := env.orderUseCase(t, &recordingPublisher{})
	legacy := model.Plan{Name: "legacy", Prices: datatypes.JSON(`{"month_price":1000}`), Sell: true}
	require.NoError(t, env.db.Create(&legacy).Error)
	plan := model.Plan{Name: "pro", Prices: datatypes.JSON(`{"monthly":1000,"month_price":900}`), Sell: true}
	require.NoError(t, env.db.Create(&plan).Error)
	ctx := context.Background()

	_, err := uc.Create(ctx, &biz.CreateOrderRequest{UserID: 4, PlanID: legacy.ID, Period: "month_price"})
	assert.True(t, errors.Is(err, payErrors.ErrInvalidPeriod))
	_, err = uc.Create(ctx, &biz.CreateOrderRequest{UserID: 4, PlanID: plan.ID, Period: "month_price"})
	assert.True(t, errors.Is(err, payErrors.ErrInvalidPeriod))

	var count int64
	require.NoError(t, env.db.Model(&model.Order{}).Count(&count).Error)
	assert.Zero(t, count)

	// 可结算周期下单后能正常完成支付
	order, err := uc.Create(ctx, &biz.CreateOrderRequest{UserID: 4, PlanID: plan.ID, Period: "monthly"})
	require.NoError(t, err)
	require.NoError(t, uc.Settle(ctx, order.TradeNo, "CB"))

	var o model.Order
	require.NoError(t, env.db.Where("trade_no = ?", order.TradeNo).First(&o).Error)
	assert.Equal(t, constants.OrderStatusPaid, o.Status)
}

func TestSettleUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	uc := env.orderUseCase(t, &recordingPublisher{})
	err := uc.Settle(context.Background(), "missing", "")
	assert.True(t, errors.Is(err, payErrors.ErrOrderNotFound))
}

func TestSettleBusyWhenLockHeld(t *testing.T) {
	env := newTestEnv(t)
	uc := env.orderUseCase(t, &recordingPublisher{})
	env.seedOrder(t, model.Order{UserID: 1, TradeNo: "L1", TotalAmount: 100, Type: constants.OrderTypeDeposit})
	env.mr.Set(constants.RedisKeySettleLock+"L1", "someone-else")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := uc.Settle(ctx, "L1", "")
	assert.True(t, errors.Is(err, payErrors.ErrSettleBusy))
}

func TestCancelAndExpire(t *testing.T) {
	env := newTestEnv(t)
	uc := env.orderUseCase(t, &recordingPublisher{})
	ctx := context.Background()
	env.seedOrder(t, model.Order{UserID: 1, TradeNo: "C1", TotalAmount: 100})
	env.seedOrder(t, model.Order{UserID: 1, TradeNo: "C2", TotalAmount: 100, Status: constants.OrderStatusPaid})
	env.seedOrder(t, model.Order{UserID: 2, TradeNo: "E1", TotalAmount: 100, CreatedAt: time.Now().Add(-5 * time.Hour)})

	require.NoError(t, uc.Cancel(ctx, 1, "C1"))
	err := uc.Cancel(ctx, 1, "C1")
	assert.True(t, errors.Is(err, payErrors.ErrInvalidTransition))
	err = uc.Cancel(ctx, 1, "C2")
	assert.True(t, errors.Is(err, payErrors.ErrInvalidTransition))
	err = uc.Cancel(ctx, 2, "C1")
	assert.True(t, errors.Is(err, payErrors.ErrOrderNotFound))

	n, err := uc.ExpirePending(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var o model.Order
	require.NoError(t, env.db.Where("trade_no = ?", "E1").First(&o).Error)
	assert.Equal(t, constants.OrderStatusCancelled, o.Status)
}

func TestPaymentConfigRepo(t *testing.T) {
	env := newTestEnv(t)
	repo := NewPaymentConfigRepo(env.data, log.DefaultLogger)
	ctx := context.Background()
	rows := []model.Payment{
		{UUID: "u-1", Payment: "EPay", Name: "a", Sort: 2, Enable: true, Config: datatypes.JSON(`{"pid":"1"}`)},
		{UUID: "u-2", Payment: "EPay", Name: "b", Sort: 1, Enable: true, HandlingFeePercent: decimal.RequireFromString("1.5")},
		{UUID: "u-3", Payment: "EPay", Name: "c", Sort: 0, Enable: false},
	}
	for i := range rows {
		require.NoError(t, env.db.Create(&rows[i]).Error)
	}

	first, err := repo.FirstEnabledByMethod(ctx, "EPay")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "u-2", first.PublicID)
	assert.True(t, decimal.RequireFromString("1.5").Equal(first.HandlingFeePercent))

	byUUID, err := repo.GetByPublicID(ctx, "u-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"pid":"1"}`, string(byUUID.Config))

	list, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	none, err := repo.FirstEnabledByMethod(ctx, "TangchaoPay")
	require.NoError(t, err)
	assert.Nil(t, none)

	generated := model.Payment{Payment: "TangchaoPay", Name: "d"}
	require.NoError(t, env.db.Create(&generated).Error)
	assert.Len(t, generated.UUID, 36)
	got, err := repo.GetByPublicID(ctx, generated.UUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, generated.ID, got.ID)
}

func TestPlanRepoPrices(t *testing.T) {
	env := newTestEnv(t)
	repo := NewPlanRepo(env.data, log.DefaultLogger)
	p := model.Plan{Name: "pro", Prices: datatypes.JSON(`{"monthly":1000,"yearly":null}`), Sell: true}
	require.NoError(t, env.db.Create(&p).Error)

	plan, err := repo.GetPlan(context.Background(), p.ID)
	require.NoError(t, err)
	price, ok := plan.Price("monthly")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), price)
	_, ok = plan.Price("yearly")
	assert.False(t, ok)

	missing, err := repo.GetPlan(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSettlementLogRecordDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	repo := NewSettlementLogRepo(env.data, log.DefaultLogger)
	ctx := context.Background()
	now := time.Now()

	fresh, err := repo.Record(ctx, []*biz.SettledEvent{
		{TradeNo: "A", UserID: 1, PaidAt: now},
		{TradeNo: "A", UserID: 1, PaidAt: now},
		{TradeNo: "B", UserID: 2, PaidAt: now},
	})
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	fresh, err = repo.Record(ctx, []*biz.SettledEvent{{TradeNo: "B", PaidAt: now}, {TradeNo: "C", PaidAt: now}})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "C", fresh[0].TradeNo)
}
