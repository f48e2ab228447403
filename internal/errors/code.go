package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Payment Service 错误定义
// 每个错误由 HTTP 状态码 + Reason 唯一标识，errors.Is 按 (code, reason) 比较，
// 因此下方的哨兵错误可以直接用于判断由构造函数生成的带上下文错误。
//
// 模块划分：
//   配置: CONFIGURATION_ERROR / CONFIG_NOT_FOUND
//   支付方式: UNKNOWN_METHOD / METHOD_DISABLED
//   网关: GATEWAY_UNAVAILABLE / UPSTREAM_ERROR
//   回调: NOTIFY_VERIFY_FAILED
//   订单: ORDER_NOT_FOUND / INVALID_TRANSITION / PENDING_ORDER_EXISTS / PLAN_NOT_FOUND / INVALID_PERIOD / SETTLE_BUSY
//   通用: INVALID_ARGUMENT / UNAUTHORIZED / DATABASE_ERROR
//   试用: INVALID_TOKEN / TRIAL_TOKEN_REQUIRED / TRIAL_ALREADY_USED

const (
	ReasonConfiguration      = "CONFIGURATION_ERROR"
	ReasonConfigNotFound     = "CONFIG_NOT_FOUND"
	ReasonUnknownMethod      = "UNKNOWN_METHOD"
	ReasonMethodDisabled     = "METHOD_DISABLED"
	ReasonGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ReasonUpstream           = "UPSTREAM_ERROR"
	ReasonNotifyVerifyFailed = "NOTIFY_VERIFY_FAILED"
	ReasonOrderNotFound      = "ORDER_NOT_FOUND"
	ReasonInvalidTransition  = "INVALID_TRANSITION"
	ReasonPendingOrderExists = "PENDING_ORDER_EXISTS"
	ReasonPlanNotFound       = "PLAN_NOT_FOUND"
	ReasonInvalidPeriod      = "INVALID_PERIOD"
	ReasonInvalidArgument    = "INVALID_ARGUMENT"
	ReasonSettleBusy         = "SETTLE_BUSY"
	ReasonInvalidToken       = "INVALID_TOKEN"
	ReasonTrialTokenRequired = "TRIAL_TOKEN_REQUIRED"
	ReasonTrialAlreadyUsed   = "TRIAL_ALREADY_USED"
	ReasonDatabase           = "DATABASE_ERROR"
	ReasonUnauthorized       = "UNAUTHORIZED"
)

// 哨兵错误
var (
	ErrConfiguration      = kerrors.New(500, ReasonConfiguration, "支付配置错误")
	ErrConfigNotFound     = kerrors.New(404, ReasonConfigNotFound, "支付配置不存在")
	ErrUnknownMethod      = kerrors.New(400, ReasonUnknownMethod, "支付方式不存在")
	ErrMethodDisabled     = kerrors.New(400, ReasonMethodDisabled, "支付方式已停用")
	ErrGatewayUnavailable = kerrors.New(503, ReasonGatewayUnavailable, "支付网关不可用")
	ErrUpstream           = kerrors.New(502, ReasonUpstream, "支付网关请求失败")
	ErrNotifyVerifyFailed = kerrors.New(422, ReasonNotifyVerifyFailed, "回调验签失败")
	ErrOrderNotFound      = kerrors.New(404, ReasonOrderNotFound, "订单不存在")
	ErrInvalidTransition  = kerrors.New(409, ReasonInvalidTransition, "订单状态不允许该操作")
	ErrPendingOrderExists = kerrors.New(400, ReasonPendingOrderExists, "您有未付款或开通中的订单，请稍后再试或将其取消")
	ErrPlanNotFound       = kerrors.New(404, ReasonPlanNotFound, "订阅计划不存在")
	ErrInvalidPeriod      = kerrors.New(400, ReasonInvalidPeriod, "该订阅周期无法购买，请选择其他周期")
	ErrInvalidArgument    = kerrors.New(400, ReasonInvalidArgument, "参数错误")
	ErrSettleBusy         = kerrors.New(503, ReasonSettleBusy, "订单正在处理中，请稍后重试")
	ErrInvalidToken       = kerrors.New(400, ReasonInvalidToken, "设备令牌无效")
	ErrTrialTokenRequired = kerrors.New(400, ReasonTrialTokenRequired, "试用套餐需要设备令牌")
	ErrTrialAlreadyUsed   = kerrors.New(400, ReasonTrialAlreadyUsed, "该设备已使用过试用")
	ErrDatabase           = kerrors.New(500, ReasonDatabase, "数据访问失败")
	ErrUnauthorized       = kerrors.New(401, ReasonUnauthorized, "未登录")
)

// Configuration 配置错误，message 不得包含密钥内容
func Configuration(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(500, ReasonConfiguration, format, args...)
}

// UnknownMethod 支付方式不存在
func UnknownMethod(method string) *kerrors.Error {
	return kerrors.Newf(400, ReasonUnknownMethod, "支付方式 %s 不存在", method)
}

// MethodDisabled 支付方式已停用
func MethodDisabled(method string) *kerrors.Error {
	return kerrors.Newf(400, ReasonMethodDisabled, "支付方式 %s 已停用", method)
}

// GatewayUnavailable 网关被管理员停用或无法连接
func GatewayUnavailable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(503, ReasonGatewayUnavailable, format, args...)
}

// Upstream 包装远端网关的传输或业务错误
func Upstream(cause error, format string, args ...interface{}) *kerrors.Error {
	e := kerrors.Newf(502, ReasonUpstream, format, args...)
	if cause != nil {
		return e.WithCause(cause)
	}
	return e
}

// InvalidTransition 订单状态流转非法
func InvalidTransition(tradeNo string, from, to int) *kerrors.Error {
	return kerrors.Newf(409, ReasonInvalidTransition, "订单 %s 不能从状态 %d 变更为 %d", tradeNo, from, to)
}

// InvalidToken 设备令牌校验失败，不暴露具体原因
func InvalidToken(cause error) *kerrors.Error {
	e := kerrors.New(400, ReasonInvalidToken, "设备令牌无效")
	if cause != nil {
		return e.WithCause(cause)
	}
	return e
}

// Database 包装数据库错误
func Database(cause error, op string) *kerrors.Error {
	return kerrors.New(500, ReasonDatabase, fmt.Sprintf("%s 失败", op)).WithCause(cause)
}

// InvalidArgument 参数错误
func InvalidArgument(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(400, ReasonInvalidArgument, format, args...)
}
