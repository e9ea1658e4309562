package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/SmartLinkDrive/CarRental/internal/car"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 预订不存在。
	ErrNotFound = errors.New("booking not found")
	// ErrCarTaken 条件占用失败：车辆已不可用。
	ErrCarTaken = errors.New("car is not available")
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateWithHold 在同一事务内完成 “占车 + 落预订”：
//
//	UPDATE cars SET available=0 WHERE id=? AND available=1
//
// 影响行数为 0 说明车辆已被占用（或不存在），返回 ErrCarTaken，
// 预订不会写入。两个并发请求抢同一辆车时最多一个能成功。
func (r *Repo) CreateWithHold(ctx context.Context, b *Booking) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&car.Car{}).
			Where("id = ? AND available = ?", b.CarID, true).
			Update("available", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCarTaken
		}
		return tx.Create(b).Error
	})
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Booking, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var b Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteAndRelease 在同一事务内删除预订并把车辆恢复为可用。
func (r *Repo) DeleteAndRelease(ctx context.Context, b *Booking) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", b.ID).Delete(&Booking{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&car.Car{}).
			Where("id = ?", b.CarID).
			Update("available", true).Error
	})
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]UserBookingRow, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rows []UserBookingRow
	err := r.db.WithContext(ctx).
		Table("bookings b").
		Select(`b.id AS booking_id, b.user_id, b.car_id, b.start_date, b.end_date,
			b.total_price, b.status,
			c.brand, c.model, c.category, c.price_per_day, c.image_url`).
		Joins("JOIN cars c ON b.car_id = c.id").
		Where("b.user_id = ?", userID).
		Order("b.created_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) ListAll(ctx context.Context) ([]AdminBookingRow, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rows []AdminBookingRow
	err := r.db.WithContext(ctx).
		Table("bookings b").
		Select(`b.id AS booking_id, b.user_id, b.car_id, b.start_date, b.end_date,
			b.total_price,
			u.username, u.email,
			c.brand, c.model, c.image_url`).
		Joins("JOIN users u ON b.user_id = u.id").
		Joins("JOIN cars c ON b.car_id = c.id").
		Order("b.start_date desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
