package service

import (
	"context"

	"payment-service/internal/biz"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/transport/http"
)

// AdminService 支付配置管理辅助接口
type AdminService struct {
	payments *biz.PaymentUseCase
	configs  *biz.PaymentConfigUseCase
}

// NewAdminService 创建管理端服务
func NewAdminService(payments *biz.PaymentUseCase, configs *biz.PaymentConfigUseCase) *AdminService {
	return &AdminService{payments: payments, configs: configs}
}

// RegisterRoutes 注册管理端路由
func (s *AdminService) RegisterRoutes(srv *http.Server) {
	r := srv.Route("/api/v1/admin/payment")
	r.GET("/methods", s.Methods)
	r.GET("/form", s.Form)
	r.GET("/notify_url", s.NotifyURL)
}

// FormRequest 表单查询；ID 为 0 时返回空表单
type FormRequest struct {
	Payment string `json:"payment"`
	ID      int64  `json:"id"`
}

// Methods 已注册的支付方式
func (s *AdminService) Methods(ctx http.Context) error {
	return invoke(ctx, "/payment.v1.Admin/Methods", nil, func(c context.Context, _ interface{}) (interface{}, error) {
		return s.configs.Methods(c), nil
	})
}

// Form 支付配置表单
func (s *AdminService) Form(ctx http.Context) error {
	var in FormRequest
	if err := ctx.BindQuery(&in); err != nil {
		return payErrors.InvalidArgument("请求参数错误")
	}
	if in.Payment == "" && in.ID == 0 {
		return payErrors.InvalidArgument("payment 与 id 不能同时为空")
	}
	return invoke(ctx, "/payment.v1.Admin/Form", &in, func(c context.Context, req interface{}) (interface{}, error) {
		r := req.(*FormRequest)
		return s.payments.Form(c, r.Payment, r.ID)
	})
}

// NotifyURL 支付配置的回调地址
func (s *AdminService) NotifyURL(ctx http.Context) error {
	var in FormRequest
	if err := ctx.BindQuery(&in); err != nil || in.ID == 0 {
		return payErrors.InvalidArgument("id 不能为空")
	}
	return invoke(ctx, "/payment.v1.Admin/NotifyURL", &in, func(c context.Context, req interface{}) (interface{}, error) {
		return s.payments.NotifyURL(c, req.(*FormRequest).ID)
	})
}
