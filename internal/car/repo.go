package car

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound 车辆不存在。
var ErrNotFound = errors.New("car not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) ListAll(ctx context.Context) ([]Car, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var cars []Car
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&cars).Error; err != nil {
		return nil, err
	}
	return cars, nil
}

func (r *Repo) ListAvailable(ctx context.Context) ([]Car, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var cars []Car
	if err := r.db.WithContext(ctx).Where("available = ?", true).Order("created_at desc").Find(&cars).Error; err != nil {
		return nil, err
	}
	return cars, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Car, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var c Car
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Create(ctx context.Context, c *Car) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) Update(ctx context.Context, c *Car) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	res := r.db.WithContext(ctx).Model(&Car{}).Where("id = ?", c.ID).
		Select("Brand", "Model", "Category", "Info", "PricePerDay", "ImageURL", "Available").
		Updates(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Car{}).Error
}

// ReleaseExpired 一条条件 UPDATE 修复所有失效的不可用标记：
// 只有当一辆车没有任何 end_date >= today 的预订时才恢复可用。
// 天然幂等；与创建预订的条件翻转（available=1 才可占用）互不竞争，
// 因为刚被占用的车一定带有一条未到期预订，会被 EXISTS 子查询排除。
func (r *Repo) ReleaseExpired(ctx context.Context, today time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	res := r.db.WithContext(ctx).Exec(
		`UPDATE cars SET available = ?
		 WHERE available = ?
		   AND NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE bookings.car_id = cars.id AND bookings.end_date >= ?
		 )`,
		true, false, today,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
