package data

import (
	"context"
	"errors"
	"time"

	"payment-service/internal/biz"
	"payment-service/internal/data/model"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fulfillmentRepo 结算权益发放：余额入账、订阅顺延
type fulfillmentRepo struct {
	data *Data
	log  *log.Helper
}

// NewFulfillmentRepo 创建权益发放 repo
func NewFulfillmentRepo(data *Data, logger log.Logger) biz.FulfillmentRepo {
	return &fulfillmentRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreditBalance 增加用户余额，不存在则创建
func (r *fulfillmentRepo) CreditBalance(ctx context.Context, userID int64, amount int64) error {
	return r.data.InTx(ctx, func(ctx context.Context) error {
		tx := r.data.DB(ctx)
		var balance model.UserBalance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&balance).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return payErrors.Database(err, "查询用户余额")
			}
			balance = model.UserBalance{UserID: userID, Balance: amount}
			if err := tx.Create(&balance).Error; err != nil {
				return payErrors.Database(err, "创建用户余额")
			}
			return nil
		}
		if err := tx.Model(&balance).Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return payErrors.Database(err, "更新用户余额")
		}
		return nil
	})
}

// ExtendSubscription 顺延订阅到期时间并切换计划
func (r *fulfillmentRepo) ExtendSubscription(ctx context.Context, userID, planID int64, period string, from time.Time) error {
	return r.data.InTx(ctx, func(ctx context.Context) error {
		tx := r.data.DB(ctx)
		var sub model.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&sub).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return payErrors.Database(err, "查询订阅")
		}

		expiredAt, perr := biz.ExtendExpiry(sub.ExpiredAt, from, period)
		if perr != nil {
			return perr
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = model.Subscription{UserID: userID, PlanID: planID, ExpiredAt: expiredAt}
			if err := tx.Create(&sub).Error; err != nil {
				return payErrors.Database(err, "创建订阅")
			}
			return nil
		}
		if err := tx.Model(&sub).Updates(map[string]interface{}{
			"plan_id":    planID,
			"expired_at": expiredAt,
		}).Error; err != nil {
			return payErrors.Database(err, "更新订阅")
		}
		return nil
	})
}
