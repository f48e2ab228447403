package model

import (
	"time"

	"gorm.io/datatypes"
)

// Plan 订阅计划表，Prices 为 {"monthly": 1000, "yearly": null, ...}，单位分。
// key 取 monthly/quarterly/half_yearly/yearly/two_yearly/three_yearly/onetime，其它 key 不可下单
type Plan struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	Name      string         `gorm:"type:varchar(255);not null"`
	Prices    datatypes.JSON `gorm:"type:json"`
	IsTrial   bool           `gorm:"not null;default:false"`
	Sell      bool           `gorm:"not null;default:false"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Plan) TableName() string {
	return "v2_plan"
}

// PlanTrialDevice 试用计划设备绑定，同一设备对同一计划只能试用一次
type PlanTrialDevice struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	PlanID    int64     `gorm:"not null;uniqueIndex:uk_plan_device,priority:1"`
	DeviceID  string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_plan_device,priority:2"`
	OrderID   *int64    `gorm:""`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PlanTrialDevice) TableName() string {
	return "v2_plan_trial_devices"
}
