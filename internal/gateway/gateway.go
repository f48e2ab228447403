// Package gateway defines the contract every payment gateway plugin
// implements and the static registry that holds them.
package gateway

import (
	"context"

	"payment-service/internal/hook"
)

// Descriptor 支付方式描述，由插件通过 available_payment_methods 过滤器注册
type Descriptor struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon"`
	PluginCode  string `json:"plugin_code"`
	Enabled     bool   `json:"enabled"`
}

// Methods 支付方式名 -> 描述
type Methods map[string]Descriptor

// PaymentRequest 出站支付请求
type PaymentRequest struct {
	TradeNo     string
	TotalAmount int64 // 分
	UserID      int64
	NotifyURL   string
	ReturnURL   string
	Extra       map[string]string
}

// PaymentResult 网关返回的支付结果
type PaymentResult struct {
	// Type 1 跳转地址，0 网关渲染的表单，-1 0 元订单无需支付
	Type int    `json:"type"`
	Data string `json:"data"`
}

// Callback 网关异步回调原始输入
type Callback struct {
	Params   map[string]string
	RemoteIP string
}

// Param 返回回调参数，不存在时为空串
func (c *Callback) Param(key string) string {
	if c == nil || c.Params == nil {
		return ""
	}
	return c.Params[key]
}

// VerifyStatus 回调验签结果
type VerifyStatus int

const (
	Rejected VerifyStatus = iota
	Verified
)

// Verification 回调验证结果；Rejected 时仅 Reason 有效
type Verification struct {
	Status       VerifyStatus
	Reason       string
	TradeNo      string
	CallbackNo   string
	CustomResult string
}

// Reject 构造拒绝结果
func Reject(reason string) *Verification {
	return &Verification{Status: Rejected, Reason: reason}
}

// Verified 是否验签通过
func (v *Verification) Verified() bool {
	return v != nil && v.Status == Verified
}

// Adapter 绑定了某个支付配置的网关实例
type Adapter interface {
	// Form 配置表单定义，纯声明，无副作用
	Form() []FormField
	// Pay 发起支付
	Pay(ctx context.Context, req *PaymentRequest) (*PaymentResult, error)
	// Notify 校验回调；伪造或格式错误返回 Rejected，error 仅用于配置错误
	Notify(ctx context.Context, cb *Callback) (*Verification, error)
}

// Plugin 网关插件
type Plugin interface {
	Code() string
	Enabled() bool
	// Boot 向支付方式过滤器注册描述，按插件 code 幂等
	Boot(methods *hook.Filters[Methods])
	// Bind 绑定配置副本，返回独立的 Adapter
	Bind(cfg Config) Adapter
}

// FixedNotifier 使用固定回调路径的插件
type FixedNotifier interface {
	FixedNotifyPath() string
}
