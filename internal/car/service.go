package car

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/google/uuid"
)

// Store 车辆存储契约（gorm 实现见 Repo；测试用内存假实现）。
type Store interface {
	ListAll(ctx context.Context) ([]Car, error)
	ListAvailable(ctx context.Context) ([]Car, error)
	FindByID(ctx context.Context, id string) (*Car, error)
	Create(ctx context.Context, c *Car) error
	Update(ctx context.Context, c *Car) error
	Delete(ctx context.Context, id string) error
	ReleaseExpired(ctx context.Context, today time.Time) (int64, error)
}

// Service 车辆读写用例：可用性修复（Refresher）+ 查询网关 + 管理端维护。
type Service struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

func NewService(store Store, log logger.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Refresh 把租期已结束的车恢复为可用。幂等，可反复调用。
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	released, err := s.store.ReleaseExpired(ctx, s.today())
	if err != nil {
		return RefreshResult{}, apperr.Internal("failed to refresh availability", err)
	}
	if released > 0 && s.log != nil {
		s.log.WithField("released", released).Info("car availability refreshed")
	}
	return RefreshResult{Released: released}, nil
}

// ListAll 先修复可用性，再返回全部车辆。
func (s *Service) ListAll(ctx context.Context) ([]Car, error) {
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	cars, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list cars", err)
	}
	return cars, nil
}

// ListAvailable 只返回 available=true 的车。
// 注意：这里刻意不触发 Refresh——需要最新结果的调用方先调
// GET /cars/refresh-availability（与线上行为保持一致，见 DESIGN.md）。
func (s *Service) ListAvailable(ctx context.Context) ([]Car, error) {
	cars, err := s.store.ListAvailable(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list available cars", err)
	}
	return cars, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Car, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("car id required")
	}
	c, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("car")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch car", err)
	}
	return c, nil
}

// AddCarInput 新增车辆入参（图片已上传完毕，这里只收引用）。
type AddCarInput struct {
	Brand       string
	Model       string
	Category    string
	Info        string
	PricePerDay float64
	ImageURL    string
}

func (s *Service) Add(ctx context.Context, in AddCarInput) (*Car, error) {
	if strings.TrimSpace(in.Brand) == "" || strings.TrimSpace(in.Model) == "" {
		return nil, apperr.Validation("brand and model required")
	}
	if in.PricePerDay <= 0 {
		return nil, apperr.Validation("price_per_day must be positive")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, apperr.Validation("image is required")
	}

	c := &Car{
		ID:          uuid.NewString(),
		Brand:       strings.TrimSpace(in.Brand),
		Model:       strings.TrimSpace(in.Model),
		Category:    strings.TrimSpace(in.Category),
		Info:        strings.TrimSpace(in.Info),
		PricePerDay: in.PricePerDay,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Available:   true,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, apperr.Internal("failed to add car", err)
	}
	return c, nil
}

// EditCarInput 编辑车辆入参；ImageURL 为空表示保留原图。
type EditCarInput struct {
	Brand       string
	Model       string
	Category    string
	Info        string
	PricePerDay float64
	ImageURL    string
	Available   bool
}

func (s *Service) Edit(ctx context.Context, id string, in EditCarInput) (*Car, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.PricePerDay <= 0 {
		return nil, apperr.Validation("price_per_day must be positive")
	}

	existing.Brand = strings.TrimSpace(in.Brand)
	existing.Model = strings.TrimSpace(in.Model)
	existing.Category = strings.TrimSpace(in.Category)
	existing.Info = strings.TrimSpace(in.Info)
	existing.PricePerDay = in.PricePerDay
	existing.Available = in.Available
	if strings.TrimSpace(in.ImageURL) != "" {
		existing.ImageURL = strings.TrimSpace(in.ImageURL)
	}

	if err := s.store.Update(ctx, existing); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("car")
		}
		return nil, apperr.Internal("failed to update car", err)
	}
	return existing, nil
}

func (s *Service) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("car id required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Internal("failed to delete car", err)
	}
	return nil
}

// today 以 UTC 日历日为准做日期比较。
func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
