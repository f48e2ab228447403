package constants

// Redis Key 前缀常量
const (
	// RedisKeySettleLock 订单结算锁 key 前缀
	RedisKeySettleLock = "payment:settle:lock:"
)

// 订单状态常量（与 v2_order.status 保持一致）
const (
	OrderStatusPending   = 0 // 待支付
	OrderStatusPaid      = 1 // 已支付
	OrderStatusCancelled = 2 // 已取消
	OrderStatusOther     = 3 // 预留
)

// 订单类型常量
const (
	// OrderTypeSubscribe 购买订阅计划
	OrderTypeSubscribe = 1
	// OrderTypeDeposit 余额充值
	OrderTypeDeposit = 9
)

// 支付结果类型（PaymentResult.Type）
const (
	// PaymentTypeFree 0 元订单，直接结算不经过网关
	PaymentTypeFree = -1
	// PaymentTypeForm 网关返回的表单/HTML
	PaymentTypeForm = 0
	// PaymentTypeRedirect 跳转地址
	PaymentTypeRedirect = 1
)

// 回调路由
const (
	// NotifyPathPrefix 通用回调路径前缀：{prefix}/{method}/{uuid}
	NotifyPathPrefix = "/api/v1/guest/payment/notify"
	// TangchaoNotifyPath 唐朝支付固定回调路径
	TangchaoNotifyPath = "/api/payment/tangchao/notify"
)

// 回调默认响应
const (
	NotifySuccessBody = "success"
	NotifyFailBody    = "fail"
)

// Hook 名称
const (
	HookAvailablePaymentMethods = "available_payment_methods"
	HookNotifyBefore            = "payment.notify.before"
	HookNotifyVerified          = "payment.notify.verified"
	HookNotifySuccess           = "payment.notify.success"
	HookNotifyFailed            = "payment.notify.failed"
	HookNotifyAfter             = "payment.notify.after"
	HookSettled                 = "payment.settled"
)

// 指标标签常量
const (
	ResultSuccess  = "success"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
	ResultNoop     = "noop"
	ResultFree     = "free"
)

// 请求头
const (
	// HeaderUserID 上游网关注入的用户 ID
	HeaderUserID = "X-User-Id"
	// HeaderNonce 设备试用令牌
	HeaderNonce = "X-Nonce"
	// HeaderNonceFallback 兼容旧客户端
	HeaderNonceFallback = "nonce"
)
