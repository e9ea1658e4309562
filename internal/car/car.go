package car

import (
	"time"
)

// Car 是 cars 表的 GORM 模型。
//
// Available 是 “是否存在未到期预订” 的缓存投影：
// - 创建预订时在同一事务内条件翻转为 false（见 booking 包）
// - 取消预订时恢复为 true
// - Refresher 定期把租期已结束的车恢复为 true
type Car struct {
	ID          string    `gorm:"primaryKey;size:36" json:"car_id"`
	Brand       string    `gorm:"size:64;not null" json:"brand"`
	Model       string    `gorm:"size:64;not null" json:"model"`
	Category    string    `gorm:"size:32" json:"category"`
	Info        string    `gorm:"size:512" json:"info"`
	PricePerDay float64   `gorm:"type:decimal(10,2);not null" json:"price_per_day"`
	ImageURL    string    `gorm:"size:255" json:"image_url"`
	Available   bool      `gorm:"not null;default:true;index" json:"available"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RefreshResult 一次可用性修复的结果。
type RefreshResult struct {
	Released int64 `json:"released"` // 本次恢复为可用的车辆数
}
