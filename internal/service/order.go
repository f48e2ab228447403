package service

import (
	"context"
	"strings"
	"time"

	"payment-service/internal/biz"
	"payment-service/internal/constants"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// OrderService 用户订单接口
type OrderService struct {
	orders   *biz.OrderUseCase
	payments *biz.PaymentUseCase
	configs  *biz.PaymentConfigUseCase
	log      *log.Helper
}

// NewOrderService 创建用户订单服务
func NewOrderService(orders *biz.OrderUseCase, payments *biz.PaymentUseCase, configs *biz.PaymentConfigUseCase, logger log.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		payments: payments,
		configs:  configs,
		log:      log.NewHelper(logger),
	}
}

// RegisterRoutes 注册用户订单路由
func (s *OrderService) RegisterRoutes(srv *http.Server) {
	r := srv.Route("/api/v1/user/order")
	r.GET("/payment_methods", s.PaymentMethods)
	r.POST("/save", s.Save)
	r.POST("/deposit", s.Deposit)
	r.POST("/checkout", s.Checkout)
	r.POST("/cancel", s.Cancel)
	r.GET("/check", s.Check)
	r.GET("/pending", s.Pending)
}

// SaveRequest 下单请求
type SaveRequest struct {
	PlanID int64  `json:"plan_id"`
	Period string `json:"period"`
	Nonce  string `json:"nonce"`
}

// DepositRequest 充值请求，金额单位分
type DepositRequest struct {
	Amount int64 `json:"amount"`
}

// CheckoutRequest 支付请求，Method 为支付配置 ID
type CheckoutRequest struct {
	TradeNo string `json:"trade_no"`
	Method  int64  `json:"method"`
}

// TradeNoRequest 仅携带订单号
type TradeNoRequest struct {
	TradeNo string `json:"trade_no"`
}

// OrderView 订单视图
type OrderView struct {
	TradeNo        string     `json:"trade_no"`
	PlanID         int64      `json:"plan_id"`
	Period         string     `json:"period"`
	Type           int        `json:"type"`
	Status         int        `json:"status"`
	TotalAmount    int64      `json:"total_amount"`
	HandlingAmount int64      `json:"handling_amount"`
	PaymentID      int64      `json:"payment_id"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

func toOrderView(o *biz.Order) *OrderView {
	return &OrderView{
		TradeNo:        o.TradeNo,
		PlanID:         o.PlanID,
		Period:         o.Period,
		Type:           o.Type,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		HandlingAmount: o.HandlingAmount,
		PaymentID:      o.PaymentID,
		CreatedAt:      o.CreatedAt,
		PaidAt:         o.PaidAt,
	}
}

// PaymentMethods 可用支付方式
func (s *OrderService) PaymentMethods(ctx http.Context) error {
	if _, err := userID(ctx); err != nil {
		return err
	}
	return invoke(ctx, "/payment.v1.Order/PaymentMethods", nil, func(c context.Context, _ interface{}) (interface{}, error) {
		return s.configs.ListEnabled(c)
	})
}

// Save 创建订阅订单；试用计划需携带设备令牌（X-Nonce 头、nonce 头或 nonce 字段）
func (s *OrderService) Save(ctx http.Context) error {
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	var in SaveRequest
	if err := ctx.Bind(&in); err != nil {
		return payErrors.InvalidArgument("请求参数错误")
	}
	token := deviceToken(ctx, in.Nonce)
	return invoke(ctx, "/payment.v1.Order/Save", &in, func(c context.Context, req interface{}) (interface{}, error) {
		r := req.(*SaveRequest)
		order, err := s.orders.Create(c, &biz.CreateOrderRequest{
			UserID:      uid,
			PlanID:      r.PlanID,
			Period:      r.Period,
			DeviceToken: token,
		})
		if err != nil {
			return nil, err
		}
		return order.TradeNo, nil
	})
}

func deviceToken(ctx http.Context, field string) string {
	for _, v := range []string{
		ctx.Header().Get(constants.HeaderNonce),
		ctx.Header().Get(constants.HeaderNonceFallback),
		field,
	} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Deposit 创建充值订单
func (s *OrderService) Deposit(ctx http.Context) error {
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	var in DepositRequest
	if err := ctx.Bind(&in); err != nil {
		return payErrors.InvalidArgument("请求参数错误")
	}
	return invoke(ctx, "/payment.v1.Order/Deposit", &in, func(c context.Context, req interface{}) (interface{}, error) {
		order, err := s.orders.CreateDeposit(c, uid, req.(*DepositRequest).Amount)
		if err != nil {
			return nil, err
		}
		return order.TradeNo, nil
	})
}

// Checkout 发起支付
func (s *OrderService) Checkout(ctx http.Context) error {
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	var in CheckoutRequest
	if err := ctx.Bind(&in); err != nil {
		return payErrors.InvalidArgument("请求参数错误")
	}
	if in.TradeNo == "" {
		return payErrors.InvalidArgument("trade_no 不能为空")
	}
	return invoke(ctx, "/payment.v1.Order/Checkout", &in, func(c context.Context, req interface{}) (interface{}, error) {
		r := req.(*CheckoutRequest)
		return s.payments.Checkout(c, uid, r.TradeNo, r.Method)
	})
}

// Cancel 取消待支付订单
func (s *OrderService) Cancel(ctx http.Context) error {
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	var in TradeNoRequest
	if err := ctx.Bind(&in); err != nil {
		return payErrors.InvalidArgument("请求参数错误")
	}
	return invoke(ctx, "/payment.v1.Order/Cancel", &in, func(c context.Context, req interface{}) (interface{}, error) {
		if err := s.orders.Cancel(c, uid, req.(*TradeNoRequest).TradeNo); err != nil {
			return nil, err
		}
		return true, nil
	})
}

// Check 查询订单状态
func (s *OrderService) Check(ctx http.Context) error {
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	var in TradeNoRequest
	if err := ctx.BindQuery(&in); err != nil {
		return payErrors.InvalidArgument("请求参数错误")
	}
	return invoke(ctx, "/payment.v1.Order/Check", &in, func(c context.Context, req interface{}) (interface{}, error) {
		order, err := s.orders.Get(c, uid, req.(*TradeNoRequest).TradeNo)
		if err != nil {
			return nil, err
		}
		return order.Status, nil
	})
}

// Pending 待支付订单
func (s *OrderService) Pending(ctx http.Context) error {
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	return invoke(ctx, "/payment.v1.Order/Pending", nil, func(c context.Context, _ interface{}) (interface{}, error) {
		orders, err := s.orders.ListPending(c, uid)
		if err != nil {
			return nil, err
		}
		out := make([]*OrderView, 0, len(orders))
		for _, o := range orders {
			out = append(out, toOrderView(o))
		}
		return out, nil
	})
}
