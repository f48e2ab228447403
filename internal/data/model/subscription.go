package model

import (
	"time"
)

// Subscription 用户订阅，每个用户一行，结算时顺延到期时间
type Subscription struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"uniqueIndex;not null"`
	PlanID    int64     `gorm:"not null"`
	ExpiredAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Subscription) TableName() string {
	return "v2_subscription"
}
