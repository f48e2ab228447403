package model

import (
	"time"
)

// UserBalance 账户余额表（充值订单结算时入账，单位：分）
type UserBalance struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"uniqueIndex;not null"`
	Balance   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (UserBalance) TableName() string {
	return "user_balance"
}
