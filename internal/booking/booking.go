package booking

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status 预订状态。当前生命周期由日期驱动（到期自动释放车辆），
// 状态字段只在创建时写入 Pending，保留它是为了兼容既有表结构与前端。
const StatusPending = "Pending"

const dateLayout = "2006-01-02"

// Date 日历日（无时分秒），JSON 与入参均使用 YYYY-MM-DD。
type Date struct {
	time.Time
}

// ParseDate 解析 YYYY-MM-DD；返回的时间为 UTC 零点。
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value 实现 driver.Valuer，落库为 DATE。
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan 实现 sql.Scanner。
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

// Booking 是 bookings 表的 GORM 模型。
// TotalPrice 在创建时按当时的日单价快照计算，之后不再重算。
type Booking struct {
	ID         string    `gorm:"primaryKey;size:36" json:"booking_id"`
	UserID     string    `gorm:"index;size:36;not null" json:"user_id"`
	CarID      string    `gorm:"index;size:36;not null" json:"car_id"`
	StartDate  Date      `gorm:"type:date;not null" json:"start_date"`
	EndDate    Date      `gorm:"type:date;not null;index" json:"end_date"`
	TotalPrice float64   `gorm:"type:decimal(10,2);not null" json:"total_price"`
	Status     string    `gorm:"size:16;not null;default:'Pending'" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserBookingRow “我的预订” 列表行：预订 + 车辆展示字段。
type UserBookingRow struct {
	BookingID   string  `json:"booking_id"`
	UserID      string  `json:"user_id"`
	CarID       string  `json:"car_id"`
	StartDate   Date    `json:"start_date"`
	EndDate     Date    `json:"end_date"`
	TotalPrice  float64 `json:"total_price"`
	Status      string  `json:"status"`
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	Category    string  `json:"category"`
	PricePerDay float64 `json:"price_per_day"`
	ImageURL    string  `json:"image_url"`
}

// AdminBookingRow 管理端列表行：预订 + 用户 + 车辆展示字段。
// 按 start_date 倒序返回（对外可观察的契约）。
type AdminBookingRow struct {
	BookingID  string  `json:"booking_id"`
	UserID     string  `json:"user_id"`
	CarID      string  `json:"car_id"`
	StartDate  Date    `json:"start_date"`
	EndDate    Date    `json:"end_date"`
	TotalPrice float64 `json:"total_price"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	ImageURL   string  `json:"image_url"`
}
