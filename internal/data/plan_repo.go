package data

import (
	"context"
	"encoding/json"
	"errors"

	"payment-service/internal/biz"
	"payment-service/internal/data/model"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type planRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanRepo 创建订阅计划 repo
func NewPlanRepo(data *Data, logger log.Logger) biz.PlanRepo {
	return &planRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetPlan 查询计划，不存在返回 nil
func (r *planRepo) GetPlan(ctx context.Context, id int64) (*biz.Plan, error) {
	var m model.Plan
	if err := r.data.DB(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, payErrors.Database(err, "查询订阅计划")
	}

	prices := map[string]int64{}
	if len(m.Prices) > 0 {
		raw := map[string]*int64{}
		if err := json.Unmarshal(m.Prices, &raw); err != nil {
			r.log.WithContext(ctx).Errorf("plan prices invalid: plan_id=%d, error=%v", m.ID, err)
			return nil, payErrors.Configuration("订阅计划 %d 价格配置错误", m.ID)
		}
		// null 表示该周期不可购买
		for k, v := range raw {
			if v != nil {
				prices[k] = *v
			}
		}
	}

	return &biz.Plan{
		ID:      m.ID,
		Name:    m.Name,
		Prices:  prices,
		IsTrial: m.IsTrial,
		Sell:    m.Sell,
	}, nil
}

// TrialUsed 设备是否已试用过该计划
func (r *planRepo) TrialUsed(ctx context.Context, planID int64, deviceID string) (bool, error) {
	var count int64
	if err := r.data.DB(ctx).Model(&model.PlanTrialDevice{}).
		Where("plan_id = ? AND device_id = ?", planID, deviceID).
		Count(&count).Error; err != nil {
		return false, payErrors.Database(err, "查询试用记录")
	}
	return count > 0, nil
}
