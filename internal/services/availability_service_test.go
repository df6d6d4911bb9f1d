package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmart/marketplace-backend/internal/cache"
	"github.com/tripmart/marketplace-backend/internal/models"
	"github.com/tripmart/marketplace-backend/pkg/booking"
)

type fakeServiceStore struct {
	svc     *models.Service
	options []models.ServiceOption
	err     error
	calls   int32
}

func (f *fakeServiceStore) GetByID(ctx context.Context, id string) (*models.Service, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if f.svc == nil || f.svc.ID != id {
		return nil, nil
	}
	return f.svc, nil
}

func (f *fakeServiceStore) ListOptions(ctx context.Context, serviceID string) ([]models.ServiceOption, error) {
	return f.options, nil
}

type fakeReservationStore struct {
	reservations []booking.Reservation
	ranges       []booking.BookedRange
	gotToday     time.Time
	gotLimit     int
	calls        int32
}

func (f *fakeReservationStore) ListReservations(ctx context.Context, serviceID string, window booking.DateRange) ([]booking.Reservation, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.reservations, nil
}

func (f *fakeReservationStore) ListBookedRanges(ctx context.Context, serviceID string, windowEnd, today time.Time, limit int) ([]booking.BookedRange, error) {
	f.gotToday = today
	f.gotLimit = limit
	if len(f.ranges) > limit {
		return f.ranges[:limit], nil
	}
	return f.ranges, nil
}

func stayService() *models.Service {
	return &models.Service{ID: "svc-1", Type: booking.ServiceStay, Name: "Lake House", Currency: "USD", IsActive: true}
}

func stayOptions() []models.ServiceOption {
	return []models.ServiceOption{
		{OptionKey: "A", Name: "Deluxe", Price: decimal.NewFromInt(100), Available: 1},
		{OptionKey: "B", Name: "Suite", Price: decimal.NewFromInt(150), Available: 2},
	}
}

func mustRange(t *testing.T, start, end string) booking.DateRange {
	t.Helper()
	r, err := booking.NewDateRange(start, end)
	require.NoError(t, err)
	return r
}

func newRedisAvailabilityCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisCache(client, 30*time.Second), mr
}

func stayQuery(start, end string) booking.AvailabilityQuery {
	return booking.AvailabilityQuery{ServiceType: booking.ServiceStay, ServiceID: "svc-1", Start: start, End: end}
}

func TestAvailabilityService_Check(t *testing.T) {
	services := &fakeServiceStore{svc: stayService(), options: stayOptions()}
	reservations := &fakeReservationStore{
		reservations: []booking.Reservation{
			{Range: mustRange(t, "2024-05-11", "2024-05-13"), Items: map[string]int{"A": 1}},
		},
		ranges: []booking.BookedRange{
			{Start: "2024-05-01", End: "2024-05-03"},
			{Start: "2024-05-05", End: "2024-05-06"},
			{Start: "2024-05-08", End: "2024-05-09"},
			{Start: "2024-05-11", End: "2024-05-13"},
		},
	}
	svc := NewAvailabilityService(services, reservations, nil, 3, booking.DefaultMaxStayDays)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC) }

	result, err := svc.Check(context.Background(), stayQuery("2024-05-10", "2024-05-12"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, result.AvailableOptionKeys)
	assert.Len(t, result.BookedRanges, 3)
	assert.False(t, result.Loading)
	assert.False(t, result.Error)
	assert.Equal(t, 3, reservations.gotLimit)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), reservations.gotToday)
}

func TestAvailabilityService_SoldOut(t *testing.T) {
	services := &fakeServiceStore{svc: stayService(), options: stayOptions()}
	reservations := &fakeReservationStore{
		reservations: []booking.Reservation{
			{Range: mustRange(t, "2024-05-10", "2024-05-12"), Items: map[string]int{"A": 1, "B": 2}},
		},
	}
	svc := NewAvailabilityService(services, reservations, nil, 3, booking.DefaultMaxStayDays)

	result, err := svc.Check(context.Background(), stayQuery("2024-05-10", "2024-05-11"))
	require.NoError(t, err)

	assert.Empty(t, result.AvailableOptionKeys)
	assert.NotNil(t, result.AvailableOptionKeys)
	assert.True(t, result.SoldOut(2))
}

func TestAvailabilityService_UsesCache(t *testing.T) {
	c, mr := newRedisAvailabilityCache(t)
	services := &fakeServiceStore{svc: stayService(), options: stayOptions()}
	reservations := &fakeReservationStore{}
	svc := NewAvailabilityService(services, reservations, c, 3, booking.DefaultMaxStayDays)
	ctx := context.Background()

	first, err := svc.Check(ctx, stayQuery("2024-05-10", "2024-05-12"))
	require.NoError(t, err)
	// RFC3339 input normalizes to the same window
	second, err := svc.Check(ctx, stayQuery("2024-05-10T00:00:00Z", "2024-05-12"))
	require.NoError(t, err)

	assert.Equal(t, first.AvailableOptionKeys, second.AvailableOptionKeys)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reservations.calls))
	assert.True(t, mr.Exists("availability:stay:svc-1:2024-05-10:2024-05-12"))

	svc.Invalidate(ctx, booking.ServiceStay, "svc-1")
	assert.False(t, mr.Exists("availability:stay:svc-1:2024-05-10:2024-05-12"))

	_, err = svc.Check(ctx, stayQuery("2024-05-10", "2024-05-12"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&reservations.calls))
}

func TestAvailabilityService_RedisDownFallsBackToDatabase(t *testing.T) {
	c, mr := newRedisAvailabilityCache(t)
	mr.Close()

	services := &fakeServiceStore{svc: stayService(), options: stayOptions()}
	svc := NewAvailabilityService(services, &fakeReservationStore{}, c, 3, booking.DefaultMaxStayDays)

	result, err := svc.Check(context.Background(), stayQuery("2024-05-10", "2024-05-12"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, result.AvailableOptionKeys)

	// Invalidation failures are logged, not returned
	svc.Invalidate(context.Background(), booking.ServiceStay, "svc-1")
}

type blockingReservationStore struct {
	fakeReservationStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (f *blockingReservationStore) ListReservations(ctx context.Context, serviceID string, window booking.DateRange) ([]booking.Reservation, error) {
	f.once.Do(func() { close(f.entered) })
	select {
	case <-f.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAvailabilityService_SharedLoadOutlivesCaller(t *testing.T) {
	services := &fakeServiceStore{svc: stayService(), options: stayOptions()}
	reservations := &blockingReservationStore{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewAvailabilityService(services, reservations, nil, 3, booking.DefaultMaxStayDays)

	callerCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Check(callerCtx, stayQuery("2024-05-10", "2024-05-12"))
		firstErr <- err
	}()
	<-reservations.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Check(context.Background(), stayQuery("2024-05-10", "2024-05-12"))
		secondErr <- err
	}()

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(reservations.release)

	assert.NoError(t, <-firstErr)
	assert.NoError(t, <-secondErr)
}

func TestAvailabilityService_Errors(t *testing.T) {
	services := &fakeServiceStore{svc: stayService(), options: stayOptions()}
	svc := NewAvailabilityService(services, &fakeReservationStore{}, nil, 3, booking.DefaultMaxStayDays)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   booking.AvailabilityQuery
		wantErr error
	}{
		{"missing id", booking.AvailabilityQuery{ServiceType: booking.ServiceStay, Start: "2024-05-10", End: "2024-05-12"}, ErrInvalidAvailability},
		{"bad type", booking.AvailabilityQuery{ServiceType: "cruise", ServiceID: "svc-1", Start: "2024-05-10", End: "2024-05-12"}, ErrInvalidServiceType},
		{"missing date", booking.AvailabilityQuery{ServiceType: booking.ServiceStay, ServiceID: "svc-1", Start: "2024-05-10"}, booking.ErrMissingDate},
		{"bad date", stayQuery("10/05/2024", "2024-05-12"), booking.ErrInvalidDate},
		{"too long", stayQuery("2024-01-01", "2400-01-01"), booking.ErrStayTooLong},
		{"unknown service", booking.AvailabilityQuery{ServiceType: booking.ServiceStay, ServiceID: "svc-2", Start: "2024-05-10", End: "2024-05-12"}, ErrServiceNotFound},
		{"type mismatch", booking.AvailabilityQuery{ServiceType: booking.ServiceTour, ServiceID: "svc-1", Start: "2024-05-10", End: "2024-05-12"}, ErrServiceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Check(ctx, tt.query)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}
}

func TestCatalogService_GetService(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		svc := NewCatalogService(&fakeServiceStore{svc: stayService(), options: stayOptions()})
		detail, err := svc.GetService(ctx, booking.ServiceStay, "svc-1")
		require.NoError(t, err)
		assert.Equal(t, "room", detail.OptionLabel)
		require.Len(t, detail.Options, 2)
		assert.Equal(t, "A", detail.Options[0].Key())
	})

	t.Run("Not Found", func(t *testing.T) {
		svc := NewCatalogService(&fakeServiceStore{})
		_, err := svc.GetService(ctx, booking.ServiceStay, "svc-1")
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("Store Error", func(t *testing.T) {
		svc := NewCatalogService(&fakeServiceStore{err: errors.New("db down")})
		_, err := svc.GetService(ctx, booking.ServiceStay, "svc-1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrServiceNotFound)
	})
}
