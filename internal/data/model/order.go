package model

import (
	"time"
)

// Order 订单表
type Order struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	UserID         int64      `gorm:"not null;index:idx_user_status,priority:1"`
	PlanID         int64      `gorm:"not null;default:0"`
	PaymentID      int64      `gorm:"not null;default:0"`
	Period         string     `gorm:"type:varchar(32);not null"`
	TradeNo        string     `gorm:"type:varchar(36);uniqueIndex;not null"`
	CallbackNo     string     `gorm:"type:varchar(255);not null;default:''"`
	TotalAmount    int64      `gorm:"not null"`
	HandlingAmount int64      `gorm:"not null;default:0"`
	Type           int        `gorm:"not null;default:1"`
	Status         int        `gorm:"not null;default:0;index:idx_user_status,priority:2;index:idx_status_created,priority:1"`
	DeviceID       string     `gorm:"type:varchar(128);not null;default:''"`
	PaidAt         *time.Time `gorm:""`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_status_created,priority:2"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "v2_order"
}
