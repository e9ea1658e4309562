package booking

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/SmartLinkDrive/CarRental/internal/car"
	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
)

// fakeEnv 共享的内存状态：预订侧与车辆侧看到同一份可用性。
type fakeEnv struct {
	mu       sync.Mutex
	cars     map[string]*car.Car
	bookings map[string]*Booking
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		cars:     make(map[string]*car.Car),
		bookings: make(map[string]*Booking),
	}
}

func (e *fakeEnv) addCar(id string, price float64, available bool) {
	e.cars[id] = &car.Car{ID: id, Brand: "VW", Model: "Golf", PricePerDay: price, Available: available}
}

type fakeBookingStore struct{ env *fakeEnv }

func (f *fakeBookingStore) CreateWithHold(ctx context.Context, b *Booking) error {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	c, ok := f.env.cars[b.CarID]
	if !ok || !c.Available {
		return ErrCarTaken
	}
	c.Available = false
	cp := *b
	f.env.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingStore) FindByID(ctx context.Context, id string) (*Booking, error) {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	b, ok := f.env.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) DeleteAndRelease(ctx context.Context, b *Booking) error {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	if _, ok := f.env.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	delete(f.env.bookings, b.ID)
	if c, ok := f.env.cars[b.CarID]; ok {
		c.Available = true
	}
	return nil
}

func (f *fakeBookingStore) ListByUser(ctx context.Context, userID string) ([]UserBookingRow, error) {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	var rows []UserBookingRow
	for _, b := range f.env.bookings {
		if b.UserID != userID {
			continue
		}
		c := f.env.cars[b.CarID]
		rows = append(rows, UserBookingRow{
			BookingID:  b.ID,
			UserID:     b.UserID,
			CarID:      b.CarID,
			StartDate:  b.StartDate,
			EndDate:    b.EndDate,
			TotalPrice: b.TotalPrice,
			Status:     b.Status,
			Brand:      c.Brand,
			Model:      c.Model,
		})
	}
	return rows, nil
}

func (f *fakeBookingStore) ListAll(ctx context.Context) ([]AdminBookingRow, error) {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	var rows []AdminBookingRow
	for _, b := range f.env.bookings {
		rows = append(rows, AdminBookingRow{BookingID: b.ID, UserID: b.UserID, CarID: b.CarID})
	}
	return rows, nil
}

type fakeCarStore struct{ env *fakeEnv }

func (f *fakeCarStore) FindByID(ctx context.Context, id string) (*car.Car, error) {
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	c, ok := f.env.cars[id]
	if !ok {
		return nil, car.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type captureEvents struct {
	mu        sync.Mutex
	created   []string
	cancelled []string
}

func (c *captureEvents) PublishCreated(ctx context.Context, b *Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, b.ID)
	return nil
}

func (c *captureEvents) PublishCancelled(ctx context.Context, b *Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, b.ID)
	return nil
}

func newTestService(env *fakeEnv, events EventPublisher) *Service {
	return NewService(&fakeBookingStore{env: env}, &fakeCarStore{env: env}, events, nil)
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected apperr, got %v", err)
	}
	if ae.HTTPStatus != status {
		t.Fatalf("expected status %d, got %d (%v)", status, ae.HTTPStatus, err)
	}
}

func TestCreateComputesPriceAndHoldsCar(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, true)
	events := &captureEvents{}
	svc := newTestService(env, events)

	b, err := svc.Create(context.Background(), "u-1", CreateInput{
		CarID:     "car-1",
		StartDate: "2025-01-01",
		EndDate:   "2025-01-03",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.TotalPrice != 100 {
		t.Fatalf("expected total_price 100 (2 days x 50), got %v", b.TotalPrice)
	}
	if b.Status != StatusPending {
		t.Fatalf("expected Pending status, got %s", b.Status)
	}
	if env.cars["car-1"].Available {
		t.Fatalf("expected car held after booking")
	}
	if len(events.created) != 1 || events.created[0] != b.ID {
		t.Fatalf("expected created event for %s, got %#v", b.ID, events.created)
	}
}

func TestCreateValidationOrder(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, true)
	env.addCar("car-busy", 50, false)
	svc := newTestService(env, nil)

	// 1) 缺字段
	_, err := svc.Create(context.Background(), "u-1", CreateInput{CarID: "car-1"})
	wantStatus(t, err, http.StatusBadRequest)

	// 2) 车不存在
	_, err = svc.Create(context.Background(), "u-1", CreateInput{
		CarID: "missing", StartDate: "2025-01-01", EndDate: "2025-01-02",
	})
	wantStatus(t, err, http.StatusNotFound)

	// 3) 车不可用（即便日期同样非法，也先报冲突）
	_, err = svc.Create(context.Background(), "u-1", CreateInput{
		CarID: "car-busy", StartDate: "2025-01-02", EndDate: "2025-01-01",
	})
	wantStatus(t, err, http.StatusConflict)

	// 4) end <= start
	_, err = svc.Create(context.Background(), "u-1", CreateInput{
		CarID: "car-1", StartDate: "2025-01-02", EndDate: "2025-01-02",
	})
	wantStatus(t, err, http.StatusBadRequest)

	// 非法日期同样按校验错误处理
	_, err = svc.Create(context.Background(), "u-1", CreateInput{
		CarID: "car-1", StartDate: "not-a-date", EndDate: "2025-01-02",
	})
	wantStatus(t, err, http.StatusBadRequest)

	// 校验失败不得部分写入：车仍可用、无预订
	if !env.cars["car-1"].Available {
		t.Fatalf("car must stay available after rejected bookings")
	}
	if len(env.bookings) != 0 {
		t.Fatalf("no booking may be inserted on failure, got %d", len(env.bookings))
	}
}

func TestCreateUnavailableCarNeverInserts(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, false)
	svc := newTestService(env, nil)

	_, err := svc.Create(context.Background(), "u-1", CreateInput{
		CarID: "car-1", StartDate: "2025-01-01", EndDate: "2025-01-03",
	})
	wantStatus(t, err, http.StatusConflict)
	if len(env.bookings) != 0 {
		t.Fatalf("conflict must not insert a booking")
	}
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, true)
	svc := newTestService(env, nil)

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), "u-1", CreateInput{
				CarID: "car-1", StartDate: "2025-01-01", EndDate: "2025-01-03",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		wantStatus(t, err, http.StatusConflict)
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning booking, got %d", wins)
	}
	if len(env.bookings) != 1 {
		t.Fatalf("expected exactly one booking row, got %d", len(env.bookings))
	}
}

func TestCancelByNonOwnerChangesNothing(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, true)
	svc := newTestService(env, nil)

	b, err := svc.Create(context.Background(), "owner", CreateInput{
		CarID: "car-1", StartDate: "2025-01-01", EndDate: "2025-01-03",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Cancel(context.Background(), "intruder", b.ID)
	wantStatus(t, err, http.StatusForbidden)
	if _, ok := env.bookings[b.ID]; !ok {
		t.Fatalf("booking must survive non-owner cancel")
	}
	if env.cars["car-1"].Available {
		t.Fatalf("car availability must not change on non-owner cancel")
	}
}

func TestCancelMissingAndNonOwnerLookTheSame(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, true)
	svc := newTestService(env, nil)

	b, err := svc.Create(context.Background(), "owner", CreateInput{
		CarID: "car-1", StartDate: "2025-01-01", EndDate: "2025-01-03",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, errMissing := svc.Cancel(context.Background(), "owner", "no-such-booking")
	_, errForeign := svc.Cancel(context.Background(), "intruder", b.ID)
	if errMissing == nil || errForeign == nil {
		t.Fatalf("both cancels must fail")
	}
	if errMissing.Error() != errForeign.Error() {
		t.Fatalf("missing vs non-owner must be indistinguishable: %q vs %q",
			errMissing.Error(), errForeign.Error())
	}
}

func TestCancelByOwnerReleasesCar(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-1", 50, true)
	events := &captureEvents{}
	svc := newTestService(env, events)

	b, err := svc.Create(context.Background(), "owner", CreateInput{
		CarID: "car-1", StartDate: "2025-01-01", EndDate: "2025-01-03",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), "owner", b.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(env.bookings) != 0 {
		t.Fatalf("expected booking deleted")
	}
	if !env.cars["car-1"].Available {
		t.Fatalf("expected car released after cancel")
	}
	if len(events.cancelled) != 1 {
		t.Fatalf("expected cancelled event, got %#v", events.cancelled)
	}
}

func TestBookThenCancelScenario(t *testing.T) {
	env := newFakeEnv()
	env.addCar("car-x", 30, true)
	svc := newTestService(env, nil)

	b, err := svc.Create(context.Background(), "u-1", CreateInput{
		CarID: "car-x", StartDate: "2025-03-01", EndDate: "2025-03-04",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.TotalPrice != 90 {
		t.Fatalf("expected total_price 90 (3 days x 30), got %v", b.TotalPrice)
	}
	if env.cars["car-x"].Available {
		t.Fatalf("expected car unavailable after booking")
	}

	if _, err := svc.Cancel(context.Background(), "u-1", b.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !env.cars["car-x"].Available {
		t.Fatalf("expected car available again after cancel")
	}
}

func TestRentalDays(t *testing.T) {
	mustDate := func(s string) Date {
		d, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%s): %v", s, err)
		}
		return d
	}

	if got := rentalDays(mustDate("2025-01-01"), mustDate("2025-01-03")); got != 2 {
		t.Fatalf("expected 2 days, got %d", got)
	}
	if got := rentalDays(mustDate("2025-01-01"), mustDate("2025-01-02")); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
	if got := rentalDays(mustDate("2025-01-02"), mustDate("2025-01-02")); got != 0 {
		t.Fatalf("expected 0 days for same day, got %d", got)
	}
	if got := rentalDays(mustDate("2025-01-03"), mustDate("2025-01-01")); got > 0 {
		t.Fatalf("expected non-positive days for inverted range, got %d", got)
	}
}
