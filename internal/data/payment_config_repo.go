package data

import (
	"context"
	"errors"

	"payment-service/internal/biz"
	"payment-service/internal/data/model"
	payErrors "payment-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type paymentConfigRepo struct {
	data *Data
	log  *log.Helper
}

// NewPaymentConfigRepo 创建支付配置 repo
func NewPaymentConfigRepo(data *Data, logger log.Logger) biz.PaymentConfigRepo {
	return &paymentConfigRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toBizPaymentConfig(m *model.Payment) *biz.PaymentConfig {
	return &biz.PaymentConfig{
		ID:                 m.ID,
		PublicID:           m.UUID,
		Method:             m.Payment,
		Name:               m.Name,
		Icon:               m.Icon,
		Config:             []byte(m.Config),
		NotifyDomain:       m.NotifyDomain,
		HandlingFeeFixed:   m.HandlingFeeFixed,
		HandlingFeePercent: m.HandlingFeePercent,
		Enable:             m.Enable,
		Sort:               m.Sort,
	}
}

func (r *paymentConfigRepo) first(db *gorm.DB) (*biz.PaymentConfig, error) {
	var m model.Payment
	if err := db.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, payErrors.Database(err, "查询支付配置")
	}
	return toBizPaymentConfig(&m), nil
}

func (r *paymentConfigRepo) GetByID(ctx context.Context, id int64) (*biz.PaymentConfig, error) {
	return r.first(r.data.DB(ctx).Where("id = ?", id))
}

func (r *paymentConfigRepo) GetByPublicID(ctx context.Context, publicID string) (*biz.PaymentConfig, error) {
	return r.first(r.data.DB(ctx).Where("uuid = ?", publicID))
}

// FirstEnabledByMethod 按排序取第一个启用的配置
func (r *paymentConfigRepo) FirstEnabledByMethod(ctx context.Context, method string) (*biz.PaymentConfig, error) {
	return r.first(r.data.DB(ctx).
		Where("payment = ? AND enable = ?", method, true).
		Order("sort ASC").Order("id ASC"))
}

func (r *paymentConfigRepo) ListEnabled(ctx context.Context) ([]*biz.PaymentConfig, error) {
	var rows []model.Payment
	if err := r.data.DB(ctx).
		Where("enable = ?", true).
		Order("sort ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, payErrors.Database(err, "查询支付配置")
	}
	out := make([]*biz.PaymentConfig, 0, len(rows))
	for i := range rows {
		out = append(out, toBizPaymentConfig(&rows[i]))
	}
	return out, nil
}
