package data

import (
	"context"
	"errors"
	"time"

	"payment-service/internal/biz"
	"payment-service/internal/constants"
	"payment-service/internal/data/model"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderRepo 订单相关数据访问
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单 repo（返回 biz.OrderRepo 接口）
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toBizOrder(m *model.Order) *biz.Order {
	return &biz.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		PlanID:         m.PlanID,
		PaymentID:      m.PaymentID,
		Period:         m.Period,
		TradeNo:        m.TradeNo,
		CallbackNo:     m.CallbackNo,
		TotalAmount:    m.TotalAmount,
		HandlingAmount: m.HandlingAmount,
		Type:           m.Type,
		Status:         m.Status,
		DeviceID:       m.DeviceID,
		PaidAt:         m.PaidAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (r *orderRepo) first(db *gorm.DB, op string) (*biz.Order, error) {
	var m model.Order
	if err := db.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, payErrors.Database(err, op)
	}
	return toBizOrder(&m), nil
}

// GetByTradeNo 按订单号查询
func (r *orderRepo) GetByTradeNo(ctx context.Context, tradeNo string) (*biz.Order, error) {
	return r.first(r.data.DB(ctx).Where("trade_no = ?", tradeNo), "查询订单")
}

// GetUserOrder 查询用户自己的订单
func (r *orderRepo) GetUserOrder(ctx context.Context, userID int64, tradeNo string) (*biz.Order, error) {
	return r.first(r.data.DB(ctx).Where("trade_no = ? AND user_id = ?", tradeNo, userID), "查询订单")
}

// LockByTradeNo 锁定订单记录，必须在事务内调用
func (r *orderRepo) LockByTradeNo(ctx context.Context, tradeNo string) (*biz.Order, error) {
	return r.first(r.data.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("trade_no = ?", tradeNo), "锁定订单")
}

// HasPendingOrder 用户是否存在待支付订单
func (r *orderRepo) HasPendingOrder(ctx context.Context, userID int64) (bool, error) {
	var count int64
	if err := r.data.DB(ctx).Model(&model.Order{}).
		Where("user_id = ? AND status = ?", userID, constants.OrderStatusPending).
		Count(&count).Error; err != nil {
		return false, payErrors.Database(err, "查询待支付订单")
	}
	return count > 0, nil
}

// ListPending 用户待支付订单，按创建时间倒序
func (r *orderRepo) ListPending(ctx context.Context, userID int64) ([]*biz.Order, error) {
	var rows []model.Order
	if err := r.data.DB(ctx).
		Where("user_id = ? AND status = ?", userID, constants.OrderStatusPending).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, payErrors.Database(err, "查询待支付订单")
	}
	return toBizOrders(rows), nil
}

// ListPendingBefore 创建时间早于 before 的待支付订单
func (r *orderRepo) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*biz.Order, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []model.Order
	if err := r.data.DB(ctx).
		Where("status = ? AND created_at < ?", constants.OrderStatusPending, before).
		Order("id ASC").Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, payErrors.Database(err, "查询超时订单")
	}
	return toBizOrders(rows), nil
}

func toBizOrders(rows []model.Order) []*biz.Order {
	out := make([]*biz.Order, 0, len(rows))
	for i := range rows {
		out = append(out, toBizOrder(&rows[i]))
	}
	return out
}

// Create 创建订单；binding 非空时同一事务写入试用设备绑定，唯一索引冲突视为已试用
func (r *orderRepo) Create(ctx context.Context, order *biz.Order, binding *biz.TrialBinding) error {
	return r.data.InTx(ctx, func(ctx context.Context) error {
		db := r.data.DB(ctx)
		m := model.Order{
			UserID:         order.UserID,
			PlanID:         order.PlanID,
			PaymentID:      order.PaymentID,
			Period:         order.Period,
			TradeNo:        order.TradeNo,
			TotalAmount:    order.TotalAmount,
			HandlingAmount: order.HandlingAmount,
			Type:           order.Type,
			Status:         order.Status,
			DeviceID:       order.DeviceID,
		}
		if err := db.Create(&m).Error; err != nil {
			return payErrors.Database(err, "创建订单")
		}
		order.ID = m.ID
		order.CreatedAt = m.CreatedAt
		order.UpdatedAt = m.UpdatedAt

		if binding == nil {
			return nil
		}
		orderID := m.ID
		bind := model.PlanTrialDevice{
			PlanID:   binding.PlanID,
			DeviceID: binding.DeviceID,
			OrderID:  &orderID,
		}
		if err := db.Create(&bind).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				r.log.WithContext(ctx).Warnf("trial device already bound: plan_id=%d, trade_no=%s", binding.PlanID, order.TradeNo)
				return payErrors.ErrTrialAlreadyUsed
			}
			return payErrors.Database(err, "创建试用绑定")
		}
		binding.OrderID = &orderID
		return nil
	})
}

// UpdatePayment 记录支付配置与手续费
func (r *orderRepo) UpdatePayment(ctx context.Context, tradeNo string, paymentID int64, handlingAmount int64) error {
	res := r.data.DB(ctx).Model(&model.Order{}).
		Where("trade_no = ? AND status = ?", tradeNo, constants.OrderStatusPending).
		Updates(map[string]interface{}{
			"payment_id":      paymentID,
			"handling_amount": handlingAmount,
		})
	if res.Error != nil {
		return payErrors.Database(res.Error, "更新订单支付方式")
	}
	if res.RowsAffected == 0 {
		return payErrors.ErrOrderNotFound
	}
	return nil
}

// TransitionStatus 条件更新订单状态，返回是否命中
func (r *orderRepo) TransitionStatus(ctx context.Context, tradeNo string, from, to int, callbackNo string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status": to,
	}
	if to == constants.OrderStatusPaid {
		updates["paid_at"] = at
		updates["callback_no"] = callbackNo
	}
	res := r.data.DB(ctx).Model(&model.Order{}).
		Where("trade_no = ? AND status = ?", tradeNo, from).
		Updates(updates)
	if res.Error != nil {
		return false, payErrors.Database(res.Error, "更新订单状态")
	}
	return res.RowsAffected == 1, nil
}
