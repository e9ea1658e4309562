package car

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
)

// fakeStore 内存实现：预订只保留 Refresher 关心的 (carID, endDate)。
type fakeStore struct {
	mu       sync.Mutex
	cars     map[string]*Car
	bookings map[string][]time.Time // carID -> end dates
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cars:     make(map[string]*Car),
		bookings: make(map[string][]time.Time),
	}
}

func (f *fakeStore) ListAll(ctx context.Context) ([]Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Car, 0, len(f.cars))
	for _, c := range f.cars {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) ListAvailable(ctx context.Context) ([]Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Car, 0, len(f.cars))
	for _, c := range f.cars {
		if c.Available {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) Create(ctx context.Context, c *Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.cars[c.ID] = &cp
	return nil
}

func (f *fakeStore) Update(ctx context.Context, c *Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cars[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	f.cars[c.ID] = &cp
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cars, id)
	return nil
}

func (f *fakeStore) ReleaseExpired(ctx context.Context, today time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var released int64
	for id, c := range f.cars {
		if c.Available {
			continue
		}
		active := false
		for _, end := range f.bookings[id] {
			if !end.Before(today) {
				active = true
				break
			}
		}
		if !active {
			c.Available = true
			released++
		}
	}
	return released, nil
}

func newTestService(store Store) *Service {
	s := NewService(store, nil)
	s.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRefreshReleasesExpiredAndIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.cars["c-1"] = &Car{ID: "c-1", Brand: "VW", Model: "Golf", Available: false}
	store.bookings["c-1"] = []time.Time{day(2025, 3, 9)} // 昨天到期

	svc := newTestService(store)

	res, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Released != 1 {
		t.Fatalf("expected 1 released, got %d", res.Released)
	}

	// 幂等：第二次不应再有任何变更
	res, err = svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh again: %v", err)
	}
	if res.Released != 0 {
		t.Fatalf("expected idempotent second run, got %d", res.Released)
	}
}

func TestRefreshKeepsCarsWithActiveBooking(t *testing.T) {
	store := newFakeStore()
	store.cars["c-1"] = &Car{ID: "c-1", Brand: "VW", Model: "Golf", Available: false}
	// 一条历史预订 + 一条未到期预订：不得释放
	store.bookings["c-1"] = []time.Time{day(2025, 3, 1), day(2025, 3, 20)}

	svc := newTestService(store)
	res, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Released != 0 {
		t.Fatalf("car with active booking must stay unavailable, released=%d", res.Released)
	}
}

func TestListAllRefreshesButListAvailableDoesNot(t *testing.T) {
	store := newFakeStore()
	store.cars["stale"] = &Car{ID: "stale", Brand: "BMW", Model: "i3", Available: false}
	store.bookings["stale"] = []time.Time{day(2025, 3, 9)}

	svc := newTestService(store)

	// listAvailable 不触发修复：过期车仍被排除
	avail, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(avail) != 0 {
		t.Fatalf("expected stale car excluded before refresh, got %d cars", len(avail))
	}

	// listAll 先修复再返回：过期车恢复可用
	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || !all[0].Available {
		t.Fatalf("expected refreshed car available in ListAll, got %#v", all)
	}

	// 修复之后 listAvailable 才看得到
	avail, err = svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("ListAvailable after refresh: %v", err)
	}
	if len(avail) != 1 {
		t.Fatalf("expected 1 available car after refresh, got %d", len(avail))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestService(newFakeStore())
	_, err := svc.GetByID(context.Background(), "missing")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.HTTPStatus != 404 {
		t.Fatalf("expected 404 apperr, got %v", err)
	}
}

func TestAddValidatesInput(t *testing.T) {
	svc := newTestService(newFakeStore())

	if _, err := svc.Add(context.Background(), AddCarInput{Model: "Golf", PricePerDay: 10, ImageURL: "/uploads/x.png"}); err == nil {
		t.Fatalf("expected brand required error")
	}
	if _, err := svc.Add(context.Background(), AddCarInput{Brand: "VW", Model: "Golf", PricePerDay: 0, ImageURL: "/uploads/x.png"}); err == nil {
		t.Fatalf("expected positive price error")
	}
	if _, err := svc.Add(context.Background(), AddCarInput{Brand: "VW", Model: "Golf", PricePerDay: 10}); err == nil {
		t.Fatalf("expected image required error")
	}

	c, err := svc.Add(context.Background(), AddCarInput{Brand: "VW", Model: "Golf", PricePerDay: 10, ImageURL: "/uploads/x.png"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.ID == "" || !c.Available {
		t.Fatalf("expected new car available with id, got %#v", c)
	}
}
