package data

import (
	"context"
	"encoding/json"

	"payment-service/internal/biz"
	"payment-service/internal/data/model"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm/clause"
)

type settlementLogRepo struct {
	data *Data
	log  *log.Helper
}

// NewSettlementLogRepo 创建结算消费记录 repo
func NewSettlementLogRepo(data *Data, logger log.Logger) biz.SettlementLogRepo {
	return &settlementLogRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Record 逐条 INSERT ... ON CONFLICT DO NOTHING，RowsAffected 为 0 的视为重复投递
func (r *settlementLogRepo) Record(ctx context.Context, events []*biz.SettledEvent) ([]*biz.SettledEvent, error) {
	var fresh []*biz.SettledEvent
	err := r.data.InTx(ctx, func(ctx context.Context) error {
		db := r.data.DB(ctx)
		seen := make(map[string]struct{}, len(events))
		for _, e := range events {
			if e == nil || e.TradeNo == "" {
				continue
			}
			if _, ok := seen[e.TradeNo]; ok {
				continue
			}
			seen[e.TradeNo] = struct{}{}

			payload, _ := json.Marshal(e)
			row := model.SettlementLog{
				TradeNo:     e.TradeNo,
				UserID:      e.UserID,
				OrderType:   e.Type,
				TotalAmount: e.TotalAmount,
				Payload:     string(payload),
				PaidAt:      e.PaidAt,
			}
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return payErrors.Database(res.Error, "写入结算记录")
			}
			if res.RowsAffected > 0 {
				fresh = append(fresh, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
