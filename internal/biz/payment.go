package biz

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"payment-service/internal/conf"
	"payment-service/internal/constants"
	payErrors "payment-service/internal/errors"
	"payment-service/internal/gateway"
	"payment-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// PaymentConfig 管理员配置的支付实例（v2_payment）
type PaymentConfig struct {
	ID                 int64
	PublicID           string
	Method             string
	Name               string
	Icon               string
	Config             []byte
	NotifyDomain       string
	HandlingFeeFixed   int64
	HandlingFeePercent decimal.Decimal
	Enable             bool
	Sort               int
}

// ConfigRef 按 ID 或 UUID 引用支付配置
type ConfigRef struct {
	ID       int64
	PublicID string
}

// PaymentConfigRepo 支付配置数据层接口；查询不到返回 nil, nil
type PaymentConfigRepo interface {
	GetByID(ctx context.Context, id int64) (*PaymentConfig, error)
	GetByPublicID(ctx context.Context, publicID string) (*PaymentConfig, error)
	FirstEnabledByMethod(ctx context.Context, method string) (*PaymentConfig, error)
	ListEnabled(ctx context.Context) ([]*PaymentConfig, error)
}

// resolved 绑定完成的网关实例
type resolved struct {
	record  *PaymentConfig
	config  gateway.Config
	plugin  gateway.Plugin
	adapter gateway.Adapter
}

// NotifyResult 回调处理结果，Body 原样返回给网关
type NotifyResult struct {
	Body    string
	TradeNo string
}

// PaymentUseCase 支付编排：解析配置、发起支付、处理回调
type PaymentUseCase struct {
	hooks    *PaymentHooks
	registry *gateway.Registry
	configs  PaymentConfigRepo
	orders   OrderRepo
	orderUc  *OrderUseCase
	appURL   string
	log      *log.Helper
	metrics  *metrics.PaymentMetrics
}

// NewPaymentUseCase 创建支付编排 UseCase
func NewPaymentUseCase(
	hooks *PaymentHooks,
	registry *gateway.Registry,
	configs PaymentConfigRepo,
	orders OrderRepo,
	orderUc *OrderUseCase,
	c *conf.Bootstrap,
	logger log.Logger,
) *PaymentUseCase {
	appURL := ""
	if c != nil && c.Payment != nil {
		appURL = c.Payment.AppURL
	}
	return &PaymentUseCase{
		hooks:    hooks,
		registry: registry,
		configs:  configs,
		orders:   orders,
		orderUc:  orderUc,
		appURL:   strings.TrimRight(appURL, "/"),
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

func (uc *PaymentUseCase) load(ctx context.Context, ref ConfigRef) (*PaymentConfig, error) {
	if ref.ID > 0 {
		rec, err := uc.configs.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	if ref.PublicID != "" {
		rec, err := uc.configs.GetByPublicID(ctx, ref.PublicID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, payErrors.ErrConfigNotFound
}

// resolve 加载配置并绑定网关；存储的 method 优先于请求的 method
func (uc *PaymentUseCase) resolve(ctx context.Context, method string, rec *PaymentConfig, requireEnabled bool) (*resolved, error) {
	if rec != nil && rec.Method != "" {
		method = rec.Method
	}

	cfg := gateway.Config{Method: method}
	if rec != nil {
		fields, err := gateway.ParseFields(rec.Config)
		if err != nil {
			uc.log.WithContext(ctx).Errorf("payment config parse failed: config_id=%d, method=%s", rec.ID, method)
			return nil, err
		}
		cfg.ID = rec.ID
		cfg.PublicID = rec.PublicID
		cfg.Enable = rec.Enable
		cfg.NotifyDomain = rec.NotifyDomain
		cfg.Fields = fields
	} else {
		cfg.Fields = map[string]string{}
	}

	desc, ok := uc.hooks.AvailableMethods(ctx)[method]
	if !ok {
		return nil, payErrors.UnknownMethod(method)
	}
	plugin, err := uc.registry.Active(desc.PluginCode)
	if err != nil {
		return nil, err
	}
	if requireEnabled && !cfg.Enable {
		return nil, payErrors.MethodDisabled(method)
	}
	cfg.NotifyURL = uc.notifyURL(plugin, method, cfg.PublicID, cfg.NotifyDomain)

	return &resolved{
		record:  rec,
		config:  cfg,
		plugin:  plugin,
		adapter: plugin.Bind(cfg),
	}, nil
}

// NotifyURL 计算支付配置的回调地址
func (uc *PaymentUseCase) NotifyURL(ctx context.Context, configID int64) (string, error) {
	rec, err := uc.load(ctx, ConfigRef{ID: configID})
	if err != nil {
		return "", err
	}
	r, err := uc.resolve(ctx, rec.Method, rec, false)
	if err != nil {
		return "", err
	}
	return r.config.NotifyURL, nil
}

func (uc *PaymentUseCase) notifyURL(plugin gateway.Plugin, method, publicID, notifyDomain string) string {
	path := constants.NotifyPathPrefix + "/" + url.PathEscape(method) + "/" + url.PathEscape(publicID)
	if fixed, ok := plugin.(gateway.FixedNotifier); ok {
		path = fixed.FixedNotifyPath()
	}
	base := uc.appURL
	if notifyDomain = strings.TrimSpace(notifyDomain); notifyDomain != "" {
		base = replaceHost(base, notifyDomain)
	}
	return base + path
}

// replaceHost 用 notify_domain 替换 app_url 的 scheme 与 host
func replaceHost(base, domain string) string {
	d, err := url.Parse(domain)
	if err != nil || d.Host == "" {
		return strings.TrimRight(domain, "/")
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return d.Scheme + "://" + d.Host
	}
	b.Scheme = d.Scheme
	b.Host = d.Host
	return strings.TrimRight(b.String(), "/")
}

// Form 返回配置表单及当前值；configID 为 0 时返回空表单
func (uc *PaymentUseCase) Form(ctx context.Context, method string, configID int64) ([]gateway.FormValue, error) {
	var rec *PaymentConfig
	if configID > 0 {
		var err error
		if rec, err = uc.load(ctx, ConfigRef{ID: configID}); err != nil {
			return nil, err
		}
	}
	r, err := uc.resolve(ctx, method, rec, false)
	if err != nil {
		return nil, err
	}
	return gateway.RenderForm(r.adapter.Form(), r.config), nil
}

// Pay 使用指定支付配置发起支付
func (uc *PaymentUseCase) Pay(ctx context.Context, method string, configID int64, req *gateway.PaymentRequest) (*gateway.PaymentResult, error) {
	rec, err := uc.load(ctx, ConfigRef{ID: configID})
	if err != nil {
		return nil, err
	}
	return uc.pay(ctx, method, rec, req)
}

func (uc *PaymentUseCase) pay(ctx context.Context, method string, rec *PaymentConfig, req *gateway.PaymentRequest) (*gateway.PaymentResult, error) {
	start := time.Now()
	r, err := uc.resolve(ctx, method, rec, true)
	if err != nil {
		uc.observePay(method, err, start)
		return nil, err
	}
	req.NotifyURL = r.config.NotifyURL
	if req.ReturnURL == "" {
		req.ReturnURL = uc.appURL + "/#/order/" + req.TradeNo
	}

	result, err := r.adapter.Pay(ctx, req)
	uc.observePay(r.config.Method, err, start)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("payment failed: trade_no=%s, method=%s, config_id=%d, error=%v", req.TradeNo, r.config.Method, r.config.ID, err)
		return nil, err
	}
	uc.log.WithContext(ctx).Infof("payment created: trade_no=%s, method=%s, type=%d", req.TradeNo, r.config.Method, result.Type)
	return result, nil
}

func (uc *PaymentUseCase) observePay(method string, err error, start time.Time) {
	if uc.metrics == nil {
		return
	}
	result := constants.ResultSuccess
	if err != nil {
		result = constants.ResultFailed
	}
	uc.metrics.PayTotal.WithLabelValues(method, result).Inc()
	uc.metrics.PayDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// Checkout 为用户待支付订单发起支付；0 元订单直接结算
func (uc *PaymentUseCase) Checkout(ctx context.Context, userID int64, tradeNo string, configID int64) (*gateway.PaymentResult, error) {
	order, err := uc.orders.GetUserOrder(ctx, userID, tradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, payErrors.ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPending {
		return nil, payErrors.InvalidTransition(tradeNo, order.Status, constants.OrderStatusPaid)
	}

	if order.TotalAmount <= 0 {
		if err := uc.orderUc.Settle(ctx, order.TradeNo, ""); err != nil {
			return nil, err
		}
		if uc.metrics != nil {
			uc.metrics.PayTotal.WithLabelValues("free", constants.ResultFree).Inc()
		}
		return &gateway.PaymentResult{Type: constants.PaymentTypeFree, Data: "true"}, nil
	}

	rec, err := uc.configs.GetByID(ctx, configID)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Enable {
		return nil, payErrors.MethodDisabled(fmt.Sprintf("#%d", configID))
	}

	handling := HandlingFee(order.TotalAmount, rec.HandlingFeePercent, rec.HandlingFeeFixed)
	if err := uc.orders.UpdatePayment(ctx, order.TradeNo, rec.ID, handling); err != nil {
		return nil, err
	}
	order.PaymentID = rec.ID
	order.HandlingAmount = handling

	return uc.pay(ctx, rec.Method, rec, &gateway.PaymentRequest{
		TradeNo:     order.TradeNo,
		TotalAmount: order.PayableAmount(),
		UserID:      order.UserID,
	})
}

// HandlingFee round(total * percent / 100 + fixed)
func HandlingFee(total int64, percent decimal.Decimal, fixed int64) int64 {
	if percent.IsZero() && fixed == 0 {
		return 0
	}
	fee := decimal.NewFromInt(total).Mul(percent).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(fixed))
	return fee.Round(0).IntPart()
}

// Notify 处理网关回调（通用路由 {method}/{uuid}）
func (uc *PaymentUseCase) Notify(ctx context.Context, method, publicID string, cb *gateway.Callback) (*NotifyResult, error) {
	return uc.notify(ctx, method, publicID, cb, func(ctx context.Context) (*PaymentConfig, error) {
		return uc.load(ctx, ConfigRef{PublicID: publicID})
	})
}

// NotifyFixed 处理固定回调路径的网关，按支付方式取首个启用的配置
func (uc *PaymentUseCase) NotifyFixed(ctx context.Context, method string, cb *gateway.Callback) (*NotifyResult, error) {
	return uc.notify(ctx, method, "", cb, func(ctx context.Context) (*PaymentConfig, error) {
		rec, err := uc.configs.FirstEnabledByMethod(ctx, method)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, payErrors.MethodDisabled(method)
		}
		return rec, nil
	})
}

func (uc *PaymentUseCase) notify(
	ctx context.Context,
	method, publicID string,
	cb *gateway.Callback,
	loader func(ctx context.Context) (*PaymentConfig, error),
) (result *NotifyResult, err error) {
	event := &NotifyEvent{Method: method, PublicID: publicID, Callback: cb}
	outcome := constants.ResultFailed
	defer func() {
		event.Err = err
		uc.hooks.NotifyAfter.Emit(ctx, event)
		if uc.metrics != nil {
			uc.metrics.NotifyTotal.WithLabelValues(method, outcome).Inc()
		}
	}()

	if err = uc.hooks.NotifyBefore.Fire(ctx, event); err != nil {
		uc.log.WithContext(ctx).Warnf("notify vetoed before verify: method=%s, uuid=%s, error=%v", method, publicID, err)
		return nil, err
	}

	rec, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	r, err := uc.resolve(ctx, method, rec, true)
	if err != nil {
		return nil, err
	}
	event.Method = r.config.Method
	event.PublicID = r.config.PublicID

	// 配置可能在解析后被停用，派发前重新确认
	if err = uc.ensureEnabled(ctx, r); err != nil {
		return nil, err
	}

	v, err := r.adapter.Notify(ctx, cb)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("notify verify error: method=%s, config_id=%d, order_no=%s, error=%v", r.config.Method, r.config.ID, orderNoHint(cb), err)
		return nil, err
	}
	event.Verification = v
	if !v.Verified() {
		outcome = constants.ResultRejected
		uc.hooks.NotifyFailed.Emit(ctx, event)
		return nil, payErrors.ErrNotifyVerifyFailed
	}

	if err = uc.hooks.NotifyVerified.Fire(ctx, event); err != nil {
		uc.log.WithContext(ctx).Warnf("notify vetoed after verify: trade_no=%s, error=%v", v.TradeNo, err)
		return nil, err
	}

	if err = uc.orderUc.Settle(ctx, v.TradeNo, v.CallbackNo); err != nil {
		return nil, err
	}
	if order, _ := uc.orders.GetByTradeNo(ctx, v.TradeNo); order != nil {
		event.Order = order
	}
	uc.hooks.NotifySuccess.Emit(ctx, event)

	outcome = constants.ResultSuccess
	body := v.CustomResult
	if body == "" {
		body = constants.NotifySuccessBody
	}
	return &NotifyResult{Body: body, TradeNo: v.TradeNo}, nil
}

func (uc *PaymentUseCase) ensureEnabled(ctx context.Context, r *resolved) error {
	if r.record == nil {
		return payErrors.MethodDisabled(r.config.Method)
	}
	current, err := uc.configs.GetByID(ctx, r.record.ID)
	if err != nil {
		return err
	}
	if current == nil || !current.Enable {
		return payErrors.MethodDisabled(r.config.Method)
	}
	return nil
}

// MethodView 用户可见的支付方式
type MethodView struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Payment            string `json:"payment"`
	Icon               string `json:"icon"`
	HandlingFeeFixed   int64  `json:"handling_fee_fixed"`
	HandlingFeePercent string `json:"handling_fee_percent"`
}

// PaymentConfigUseCase 支付方式查询（用户与管理端）
type PaymentConfigUseCase struct {
	hooks   *PaymentHooks
	configs PaymentConfigRepo
}

// NewPaymentConfigUseCase 创建支付方式查询 UseCase
func NewPaymentConfigUseCase(hooks *PaymentHooks, configs PaymentConfigRepo) *PaymentConfigUseCase {
	return &PaymentConfigUseCase{hooks: hooks, configs: configs}
}

// Methods 所有已注册支付方式名（排序）
func (uc *PaymentConfigUseCase) Methods(ctx context.Context) []string {
	methods := uc.hooks.AvailableMethods(ctx)
	names := make([]string, 0, len(methods))
	for name, d := range methods {
		if d.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ListEnabled 用户下单可选的支付配置，忽略插件未注册的方式
func (uc *PaymentConfigUseCase) ListEnabled(ctx context.Context) ([]*MethodView, error) {
	records, err := uc.configs.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	methods := uc.hooks.AvailableMethods(ctx)
	out := make([]*MethodView, 0, len(records))
	for _, rec := range records {
		d, ok := methods[rec.Method]
		if !ok {
			continue
		}
		icon := rec.Icon
		if icon == "" {
			icon = d.Icon
		}
		out = append(out, &MethodView{
			ID:                 rec.ID,
			Name:               rec.Name,
			Payment:            rec.Method,
			Icon:               icon,
			HandlingFeeFixed:   rec.HandlingFeeFixed,
			HandlingFeePercent: rec.HandlingFeePercent.String(),
		})
	}
	return out, nil
}
