package service

import (
	"context"
	"errors"
	nethttp "net/http"

	"payment-service/internal/biz"
	"payment-service/internal/conf"
	"payment-service/internal/constants"
	payErrors "payment-service/internal/errors"
	"payment-service/internal/gateway"
	"payment-service/internal/gateway/tangchao"
	"payment-service/internal/pkg/mask"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// PaymentService 网关异步回调入口
type PaymentService struct {
	uc         *biz.PaymentUseCase
	trustProxy bool
	log        *log.Helper
}

// NewPaymentService 创建回调服务
func NewPaymentService(uc *biz.PaymentUseCase, c *conf.Bootstrap, logger log.Logger) *PaymentService {
	trust := false
	if c != nil && c.Payment != nil {
		trust = c.Payment.TrustProxyHeaders
	}
	return &PaymentService{
		uc:         uc,
		trustProxy: trust,
		log:        log.NewHelper(logger),
	}
}

// RegisterRoutes 注册回调路由
func (s *PaymentService) RegisterRoutes(srv *http.Server) {
	r := srv.Route("/")
	r.GET(constants.NotifyPathPrefix+"/{method}/{uuid}", s.Notify)
	r.POST(constants.NotifyPathPrefix+"/{method}/{uuid}", s.Notify)
	r.POST(constants.TangchaoNotifyPath, s.NotifyTangchao)
}

// Notify 通用回调 /api/v1/guest/payment/notify/{method}/{uuid}
func (s *PaymentService) Notify(ctx http.Context) error {
	vars := ctx.Vars()
	method, publicID := vars.Get("method"), vars.Get("uuid")
	cb := s.callback(ctx)
	s.log.WithContext(ctx).Infof("payment notify received: method=%s, uuid=%s, ip=%s, params=%v", method, publicID, cb.RemoteIP, mask.Params(cb.Params))

	return s.respond(ctx, "/payment.v1.Payment/Notify", cb, func(c context.Context) (*biz.NotifyResult, error) {
		return s.uc.Notify(c, method, publicID, cb)
	})
}

// NotifyTangchao 唐朝支付固定回调
func (s *PaymentService) NotifyTangchao(ctx http.Context) error {
	cb := s.callback(ctx)
	s.log.WithContext(ctx).Infof("tangchao notify received: ip=%s, params=%v", cb.RemoteIP, mask.Params(cb.Params))

	return s.respond(ctx, "/payment.v1.Payment/NotifyTangchao", cb, func(c context.Context) (*biz.NotifyResult, error) {
		return s.uc.NotifyFixed(c, tangchao.Code, cb)
	})
}

func (s *PaymentService) callback(ctx http.Context) *gateway.Callback {
	req := ctx.Request()
	return &gateway.Callback{
		Params:   callbackParams(req),
		RemoteIP: remoteIP(req, s.trustProxy),
	}
}

// respond 网关只认纯文本响应：成功返回 customResult 或 success，失败返回 fail
func (s *PaymentService) respond(ctx http.Context, operation string, cb *gateway.Callback, fn func(context.Context) (*biz.NotifyResult, error)) error {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return fn(c)
	})
	out, err := h(ctx, cb)
	if err != nil {
		code := notifyStatus(err)
		s.log.WithContext(ctx).Warnf("payment notify failed: status=%d, error=%v", code, err)
		return ctx.String(code, constants.NotifyFailBody)
	}
	return ctx.String(nethttp.StatusOK, out.(*biz.NotifyResult).Body)
}

func notifyStatus(err error) int {
	if errors.Is(err, payErrors.ErrNotifyVerifyFailed) {
		return nethttp.StatusUnprocessableEntity
	}
	if se := kerrors.FromError(err); se != nil && se.Code > 0 && se.Code != kerrors.UnknownCode {
		return int(se.Code)
	}
	return nethttp.StatusInternalServerError
}
