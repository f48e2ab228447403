// Package tangchao implements the TangchaoPay gateway: RSA-signed form
// fields posted over HTTPS, callbacks delivered to a fixed path and
// authenticated by re-signing the echoed fields with the merchant key.
package tangchao

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"payment-service/internal/constants"
	payErrors "payment-service/internal/errors"
	"payment-service/internal/gateway"
	"payment-service/internal/hook"
	"payment-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	// Code 插件 code，同时作为支付方式名
	Code = "TangchaoPay"
	// DefaultGatewayURL 唐朝支付下单地址
	DefaultGatewayURL = "https://api.tangchaoshop.com/payment/gateway"

	defaultDisplayName = "唐朝支付"
	defaultIcon        = "🏛️"
	defaultPayType     = "1"
	defaultCurrency    = "rmb"
	successFlag        = "1"
	customResult       = "OK"
)

// Options 插件级配置
type Options struct {
	Enabled     bool
	DisplayName string
	Icon        string
	GatewayURL  string
	HTTP        gateway.HTTPOptions
}

// Plugin 唐朝支付插件
type Plugin struct {
	opts    Options
	client  *resty.Client
	now     func() time.Time
	log     *log.Helper
	metrics *metrics.PaymentMetrics
}

var (
	_ gateway.Plugin        = (*Plugin)(nil)
	_ gateway.FixedNotifier = (*Plugin)(nil)
)

// New 创建唐朝支付插件
func New(opts Options, logger log.Logger) *Plugin {
	if opts.GatewayURL == "" {
		opts.GatewayURL = DefaultGatewayURL
	}
	if opts.DisplayName == "" {
		opts.DisplayName = defaultDisplayName
	}
	if opts.Icon == "" {
		opts.Icon = defaultIcon
	}
	return &Plugin{
		opts:    opts,
		client:  gateway.NewHTTPClient(opts.HTTP),
		now:     time.Now,
		log:     log.NewHelper(log.With(logger, "plugin", Code)),
		metrics: metrics.GetMetrics(),
	}
}

// WithClock 替换时钟（测试用）
func (p *Plugin) WithClock(now func() time.Time) *Plugin {
	p.now = now
	return p
}

// WithClient 替换 HTTP 客户端
func (p *Plugin) WithClient(c *resty.Client) *Plugin {
	p.client = c
	return p
}

func (p *Plugin) Code() string  { return Code }
func (p *Plugin) Enabled() bool { return p.opts.Enabled }

// FixedNotifyPath 唐朝支付后台只能配置一个回调地址
func (p *Plugin) FixedNotifyPath() string { return constants.TangchaoNotifyPath }

// Boot 注册支付方式
func (p *Plugin) Boot(methods *hook.Filters[gateway.Methods]) {
	gateway.RegisterDescriptor(methods, gateway.Descriptor{
		Name:        Code,
		DisplayName: p.opts.DisplayName,
		Icon:        p.opts.Icon,
		PluginCode:  Code,
		Enabled:     true,
	})
}

// Bind 绑定配置
func (p *Plugin) Bind(cfg gateway.Config) gateway.Adapter {
	return &adapter{plugin: p, cfg: cfg.Clone()}
}

type adapter struct {
	plugin *Plugin
	cfg    gateway.Config
}

func (a *adapter) Form() []gateway.FormField {
	return []gateway.FormField{
		{Key: "app_id", Label: "App ID", Required: true, Description: "唐朝平台项目 app_id"},
		{Key: "merchant_id", Label: "商户号", Required: true, Description: "唐朝支付商户 ID"},
		{Key: "private_key", Label: "RSA 私钥", Type: "text", Required: true, Description: "唐朝后台下载的应用私钥（PKCS1 / PKCS8）"},
		{Key: "public_key", Label: "RSA 公钥", Type: "text", Description: "唐朝后台下载的公钥"},
		{
			Key:         "pay_type",
			Label:       "支付渠道",
			Type:        "select",
			Default:     defaultPayType,
			Description: "唐朝支付支持的支付类型",
			SelectOptions: map[string]string{
				"1": "支付宝",
				"2": "微信",
				"3": "银行卡",
				"4": "数字货币",
			},
		},
		{Key: "currency", Label: "币种", Default: defaultCurrency, Description: "默认 rmb，可根据唐朝后台配置调整"},
		{Key: "ip_allowed", Label: "回调白名单 IP", Placeholder: "1.2.3.4,5.6.7.8", Description: "可配置逗号分隔的白名单 IP，留空则不校验"},
	}
}

type gatewayResponse struct {
	Code json.Number     `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *adapter) Pay(ctx context.Context, req *gateway.PaymentRequest) (*gateway.PaymentResult, error) {
	p := a.plugin
	if !p.opts.Enabled {
		return nil, payErrors.GatewayUnavailable("唐朝支付未启用")
	}

	appID := strings.TrimSpace(a.cfg.Get("app_id"))
	merchantID := strings.TrimSpace(a.cfg.Get("merchant_id"))
	if appID == "" || merchantID == "" || strings.TrimSpace(a.cfg.Get("private_key")) == "" {
		return nil, payErrors.Configuration("唐朝支付配置不完整：缺少 app_id、merchant_id 或 private_key")
	}
	key, err := ParsePrivateKey(a.cfg.Get("private_key"))
	if err != nil {
		p.log.WithContext(ctx).Errorf("private key invalid: config_id=%d", a.cfg.ID)
		return nil, err
	}

	payload := map[string]string{
		"amount":      decimal.New(req.TotalAmount, -2).StringFixed(2),
		"app_id":      appID,
		"merchant_id": merchantID,
		"order_no":    req.TradeNo,
		"pay_type":    a.cfg.GetDefault("pay_type", defaultPayType),
		"currency":    a.cfg.GetDefault("currency", defaultCurrency),
		"timestamp":   strconv.FormatInt(p.now().Unix(), 10),
	}
	sign, err := Sign(key, Canonical(payFields, payload))
	if err != nil {
		return nil, payErrors.Configuration("唐朝支付签名失败").WithCause(err)
	}
	payload["encode_sign"] = sign

	p.log.WithContext(ctx).Infof("gateway request: order_no=%s, amount=%s, merchant_id=%s", req.TradeNo, payload["amount"], merchantID)

	start := time.Now()
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(payload).
		Post(p.opts.GatewayURL)
	if p.metrics != nil {
		p.metrics.UpstreamDuration.WithLabelValues(Code).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		p.log.WithContext(ctx).Errorf("gateway request failed: order_no=%s, error=%v", req.TradeNo, err)
		return nil, payErrors.Upstream(err, "支付网关请求失败")
	}
	p.log.WithContext(ctx).Infof("gateway response: order_no=%s, http_code=%d, duration=%s", req.TradeNo, resp.StatusCode(), time.Since(start))

	var body gatewayResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		p.log.WithContext(ctx).Errorf("gateway response not json: order_no=%s, http_code=%d", req.TradeNo, resp.StatusCode())
		return nil, payErrors.Upstream(err, "支付网关返回了无效的JSON数据")
	}
	if body.Code != "" && body.Code != "0" {
		msg := body.Msg
		if msg == "" {
			msg = "未知错误"
		}
		p.log.WithContext(ctx).Warnf("gateway business error: order_no=%s, code=%s, msg=%s", req.TradeNo, body.Code, msg)
		return nil, payErrors.Upstream(nil, "支付失败: %s (错误码: %s)", msg, body.Code)
	}

	var data struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(body.Data, &data)
	if data.URL == "" {
		msg := body.Msg
		if msg == "" {
			msg = "未获取到支付地址"
		}
		return nil, payErrors.Upstream(nil, "%s", msg)
	}

	return &gateway.PaymentResult{Type: constants.PaymentTypeRedirect, Data: data.URL}, nil
}

func (a *adapter) Notify(ctx context.Context, cb *gateway.Callback) (*gateway.Verification, error) {
	p := a.plugin
	if !p.opts.Enabled {
		return gateway.Reject("plugin disabled"), nil
	}

	if allowed := strings.TrimSpace(a.cfg.Get("ip_allowed")); allowed != "" && !ipAllowed(allowed, cb.RemoteIP) {
		p.log.WithContext(ctx).Warnf("notify blocked by ip whitelist: ip=%s, order_no=%s", cb.RemoteIP, cb.Param("order_no"))
		return gateway.Reject("ip not allowed"), nil
	}

	signature := cb.Param("encode_sign")
	if signature == "" {
		return gateway.Reject("missing signature"), nil
	}

	key, err := ParsePrivateKey(a.cfg.Get("private_key"))
	if err != nil {
		p.log.WithContext(ctx).Errorf("private key invalid: config_id=%d", a.cfg.ID)
		return nil, err
	}

	if !Verify(key, Canonical(notifyFields, cb.Params), signature) {
		p.log.WithContext(ctx).Warnf("notify sign mismatch: order_no=%s, invoice_no=%s", cb.Param("order_no"), cb.Param("invoice_no"))
		return gateway.Reject("signature mismatch"), nil
	}

	if cb.Param("success") != successFlag {
		return gateway.Reject("transaction not successful"), nil
	}
	if cb.Param("order_no") == "" {
		return gateway.Reject("missing order_no"), nil
	}

	return &gateway.Verification{
		Status:       gateway.Verified,
		TradeNo:      cb.Param("order_no"),
		CallbackNo:   cb.Param("invoice_no"),
		CustomResult: customResult,
	}, nil
}

func ipAllowed(list, remote string) bool {
	ip := net.ParseIP(strings.TrimSpace(remote))
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if item == remote {
			return true
		}
		if ip != nil {
			if allowed := net.ParseIP(item); allowed != nil && allowed.Equal(ip) {
				return true
			}
		}
	}
	return false
}
