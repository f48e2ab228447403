// Package epay implements the EPay (易支付) aggregated gateway: MD5-signed
// redirect to submit.php, callbacks on the generic per-configuration route.
package epay

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"payment-service/internal/constants"
	payErrors "payment-service/internal/errors"
	"payment-service/internal/gateway"
	"payment-service/internal/hook"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

const (
	Code = "EPay"

	defaultDisplayName = "易支付"
	defaultIcon        = "💳"
	defaultType        = "alipay"
	tradeSuccess       = "TRADE_SUCCESS"
	signType           = "MD5"
)

// Options 插件级配置
type Options struct {
	Enabled     bool
	DisplayName string
	Icon        string
}

// Plugin 易支付插件
type Plugin struct {
	opts Options
	log  *log.Helper
}

var _ gateway.Plugin = (*Plugin)(nil)

// New 创建易支付插件
func New(opts Options, logger log.Logger) *Plugin {
	if opts.DisplayName == "" {
		opts.DisplayName = defaultDisplayName
	}
	if opts.Icon == "" {
		opts.Icon = defaultIcon
	}
	return &Plugin{opts: opts, log: log.NewHelper(log.With(logger, "plugin", Code))}
}

func (p *Plugin) Code() string  { return Code }
func (p *Plugin) Enabled() bool { return p.opts.Enabled }

func (p *Plugin) Boot(methods *hook.Filters[gateway.Methods]) {
	gateway.RegisterDescriptor(methods, gateway.Descriptor{
		Name:        Code,
		DisplayName: p.opts.DisplayName,
		Icon:        p.opts.Icon,
		PluginCode:  Code,
		Enabled:     true,
	})
}

func (p *Plugin) Bind(cfg gateway.Config) gateway.Adapter {
	return &adapter{plugin: p, cfg: cfg.Clone()}
}

type adapter struct {
	plugin *Plugin
	cfg    gateway.Config
}

func (a *adapter) Form() []gateway.FormField {
	return []gateway.FormField{
		{Key: "url", Label: "接口地址", Placeholder: "https://pay.example.com/", Required: true},
		{Key: "pid", Label: "商户 ID", Required: true},
		{Key: "key", Label: "商户密钥", Required: true},
		{
			Key:     "type",
			Label:   "支付类型",
			Type:    "select",
			Default: defaultType,
			Options: []gateway.Option{
				{Label: "支付宝", Value: "alipay"},
				{Label: "微信", Value: "wxpay"},
				{Label: "QQ 钱包", Value: "qqpay"},
			},
		},
	}
}

func (a *adapter) Pay(ctx context.Context, req *gateway.PaymentRequest) (*gateway.PaymentResult, error) {
	if !a.plugin.opts.Enabled {
		return nil, payErrors.GatewayUnavailable("易支付未启用")
	}
	base := strings.TrimRight(strings.TrimSpace(a.cfg.Get("url")), "/")
	pid := strings.TrimSpace(a.cfg.Get("pid"))
	key := a.cfg.Get("key")
	if base == "" || pid == "" || key == "" {
		return nil, payErrors.Configuration("易支付配置不完整：缺少 url、pid 或 key")
	}
	if !strings.HasSuffix(base, "submit.php") {
		base += "/submit.php"
	}

	params := map[string]string{
		"pid":          pid,
		"type":         a.cfg.GetDefault("type", defaultType),
		"out_trade_no": req.TradeNo,
		"notify_url":   req.NotifyURL,
		"return_url":   req.ReturnURL,
		"name":         "订单 " + req.TradeNo,
		"money":        decimal.New(req.TotalAmount, -2).StringFixed(2),
	}
	if name := req.Extra["name"]; name != "" {
		params["name"] = name
	}
	params["sign"] = Sign(params, key)
	params["sign_type"] = signType

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	a.plugin.log.WithContext(ctx).Infof("redirect built: out_trade_no=%s, money=%s", req.TradeNo, params["money"])
	return &gateway.PaymentResult{Type: constants.PaymentTypeRedirect, Data: base + "?" + q.Encode()}, nil
}

func (a *adapter) Notify(ctx context.Context, cb *gateway.Callback) (*gateway.Verification, error) {
	if !a.plugin.opts.Enabled {
		return gateway.Reject("plugin disabled"), nil
	}
	key := a.cfg.Get("key")
	if key == "" {
		return nil, payErrors.Configuration("易支付商户密钥未配置")
	}

	remote := cb.Param("sign")
	if remote == "" {
		return gateway.Reject("missing signature"), nil
	}
	local := Sign(cb.Params, key)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(remote)), []byte(local)) != 1 {
		a.plugin.log.WithContext(ctx).Warnf("notify sign mismatch: out_trade_no=%s", cb.Param("out_trade_no"))
		return gateway.Reject("signature mismatch"), nil
	}
	if pid := strings.TrimSpace(a.cfg.Get("pid")); pid != "" && cb.Param("pid") != "" && cb.Param("pid") != pid {
		return gateway.Reject("merchant mismatch"), nil
	}
	if cb.Param("trade_status") != tradeSuccess {
		return gateway.Reject("transaction not successful"), nil
	}
	if cb.Param("out_trade_no") == "" {
		return gateway.Reject("missing out_trade_no"), nil
	}
	return &gateway.Verification{
		Status:     gateway.Verified,
		TradeNo:    cb.Param("out_trade_no"),
		CallbackNo: cb.Param("trade_no"),
	}, nil
}

// Sign md5(按 key 排序的非空 k=v 用 & 连接 + 商户密钥)，忽略 sign / sign_type
func Sign(params map[string]string, key string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(key)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
