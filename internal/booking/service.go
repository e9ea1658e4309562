package booking

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/SmartLinkDrive/CarRental/internal/car"
	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/google/uuid"
)

// Store 预订存储契约（gorm 实现见 Repo；测试用内存假实现）。
type Store interface {
	CreateWithHold(ctx context.Context, b *Booking) error
	FindByID(ctx context.Context, id string) (*Booking, error)
	DeleteAndRelease(ctx context.Context, b *Booking) error
	ListByUser(ctx context.Context, userID string) ([]UserBookingRow, error)
	ListAll(ctx context.Context) ([]AdminBookingRow, error)
}

// CarStore 预订侧只需要按 ID 查车（取单价与存在性）。
type CarStore interface {
	FindByID(ctx context.Context, id string) (*car.Car, error)
}

// EventPublisher 预订事件旁路发布（best-effort，失败只记日志）。
type EventPublisher interface {
	PublishCreated(ctx context.Context, b *Booking) error
	PublishCancelled(ctx context.Context, b *Booking) error
}

// Service 预订生命周期用例：创建（含定价与原子占车）、取消、查询。
type Service struct {
	store  Store
	cars   CarStore
	events EventPublisher
	log    logger.Logger
}

func NewService(store Store, cars CarStore, events EventPublisher, log logger.Logger) *Service {
	return &Service{store: store, cars: cars, events: events, log: log}
}

// CreateInput 创建预订入参（日期为 YYYY-MM-DD 字符串）。
type CreateInput struct {
	CarID     string `json:"car_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// Create 校验顺序（逐项快速失败，错误对客户端可区分）：
//  1. car_id / start_date / end_date 均必填
//  2. 车辆存在
//  3. 车辆当前可用（预检，最终以事务内的条件占用为准）
//  4. 日期可解析且 end > start；天数 = ceil(间隔/1天)，最少 1 天
//
// 总价按车辆当时的日单价快照计算。占车与落预订在同一事务内完成，
// 并发抢同一辆车最多一个成功（见 Repo.CreateWithHold）。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Booking, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Unauthorized("missing user identity")
	}
	if strings.TrimSpace(in.CarID) == "" || strings.TrimSpace(in.StartDate) == "" || strings.TrimSpace(in.EndDate) == "" {
		return nil, apperr.Validation("missing booking data")
	}

	c, err := s.cars.FindByID(ctx, strings.TrimSpace(in.CarID))
	if errors.Is(err, car.ErrNotFound) {
		return nil, apperr.NotFound("car")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch car", err)
	}
	if !c.Available {
		return nil, apperr.Conflict("car is not available for booking")
	}

	start, err := ParseDate(strings.TrimSpace(in.StartDate))
	if err != nil {
		return nil, apperr.Validation("invalid start_date, expected YYYY-MM-DD")
	}
	end, err := ParseDate(strings.TrimSpace(in.EndDate))
	if err != nil {
		return nil, apperr.Validation("invalid end_date, expected YYYY-MM-DD")
	}

	days := rentalDays(start, end)
	if days <= 0 {
		return nil, apperr.Validation("end date must be after start date")
	}

	b := &Booking{
		ID:         uuid.NewString(),
		UserID:     userID,
		CarID:      c.ID,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: c.PricePerDay * float64(days),
		Status:     StatusPending,
	}

	if err := s.store.CreateWithHold(ctx, b); err != nil {
		if errors.Is(err, ErrCarTaken) {
			return nil, apperr.Conflict("car is not available for booking")
		}
		return nil, apperr.Internal("booking failed", err)
	}

	s.publish(ctx, b, false)
	return b, nil
}

// Cancel 只有预订归属人可以取消。
// “预订不存在” 与 “非本人预订” 刻意返回同一个错误，避免泄露存在性。
func (s *Service) Cancel(ctx context.Context, userID, bookingID string) (*Booking, error) {
	userID = strings.TrimSpace(userID)
	bookingID = strings.TrimSpace(bookingID)
	if userID == "" {
		return nil, apperr.Unauthorized("missing user identity")
	}

	b, err := s.store.FindByID(ctx, bookingID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.CancelForbidden()
	}
	if err != nil {
		return nil, apperr.Internal("cancellation failed", err)
	}
	if b.UserID != userID {
		return nil, apperr.CancelForbidden()
	}

	if err := s.store.DeleteAndRelease(ctx, b); err != nil {
		if errors.Is(err, ErrNotFound) {
			// 并发下预订可能刚被删掉；对外仍收敛为同一个错误
			return nil, apperr.CancelForbidden()
		}
		return nil, apperr.Internal("cancellation failed", err)
	}

	s.publish(ctx, b, true)
	return b, nil
}

// ListMine 当前用户的预订（带车辆展示字段）。
func (s *Service) ListMine(ctx context.Context, userID string) ([]UserBookingRow, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Unauthorized("missing user identity")
	}
	rows, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("could not retrieve bookings", err)
	}
	return rows, nil
}

// ListAll 管理端全量预订，按 start_date 倒序。
func (s *Service) ListAll(ctx context.Context) ([]AdminBookingRow, error) {
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, apperr.Internal("could not retrieve bookings", err)
	}
	return rows, nil
}

func (s *Service) publish(ctx context.Context, b *Booking, cancelled bool) {
	if s.events == nil {
		return
	}
	var err error
	if cancelled {
		err = s.events.PublishCancelled(ctx, b)
	} else {
		err = s.events.PublishCreated(ctx, b)
	}
	if err != nil && s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"booking_id": b.ID,
			"error":      err.Error(),
		}).Warn("failed to publish booking event")
	}
}

// rentalDays 按日历日差计算租期天数（向上取整）。
func rentalDays(start, end Date) int {
	diff := end.Sub(start.Time)
	return int(math.Ceil(diff.Hours() / 24))
}
