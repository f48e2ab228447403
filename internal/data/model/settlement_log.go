package model

import (
	"time"
)

// SettlementLog payment.settled 消息消费记录，trade_no 唯一保证重复投递只落一次
type SettlementLog struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	TradeNo     string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	UserID      int64     `gorm:"not null;index"`
	OrderType   int       `gorm:"not null"`
	TotalAmount int64     `gorm:"not null"`
	Payload     string    `gorm:"type:text"`
	PaidAt      time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SettlementLog) TableName() string {
	return "payment_settlement_log"
}
