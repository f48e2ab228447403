package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment 支付配置表，每行是一个支付方式实例
type Payment struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	UUID               string          `gorm:"column:uuid;type:varchar(36);uniqueIndex;not null"`
	Payment            string          `gorm:"column:payment;type:varchar(64);not null;index"`
	Name               string          `gorm:"type:varchar(255);not null"`
	Icon               string          `gorm:"type:varchar(255);not null;default:''"`
	Config             datatypes.JSON  `gorm:"type:json"`
	NotifyDomain       string          `gorm:"type:varchar(128);not null;default:''"`
	HandlingFeeFixed   int64           `gorm:"not null;default:0"`
	HandlingFeePercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Enable             bool            `gorm:"not null;default:false"`
	Sort               int             `gorm:"not null;default:0"`
	CreatedAt          time.Time       `gorm:"autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "v2_payment"
}

// BeforeCreate 未指定 uuid 时生成，回调地址中的公开 id 使用该值
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	return nil
}
