package inventory_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/errs"
	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// One connection so every query sees the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := inventory.Migrate(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create events table: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func seedEvent(t *testing.T, db *bun.DB, event models.Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := db.NewInsert().Model(&event).Exec(context.Background())
	assert.NoError(t, err)
}

func getEvent(t *testing.T, db *bun.DB, id string) models.Event {
	var event models.Event
	err := db.NewSelect().Model(&event).Where("id = ?", id).Scan(context.Background())
	assert.NoError(t, err)
	return event
}

func newInventory(db *bun.DB) *inventory.Inventory {
	return inventory.New(db, logger.NewNop())
}

func TestTryReserveHappyPath(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 10, BookedSeats: 0, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)

	res, err := inv.TryReserve(context.Background(), "ev1", 3)
	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, "ev1", res.EventID)
	assert.Equal(t, 3, res.GuestCount)

	event := getEvent(t, db, "ev1")
	assert.Equal(t, 3, event.BookedSeats)
	assert.Equal(t, models.EventLive, event.Status)
}

func TestTryReserveFlipsToFullyBooked(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 5, BookedSeats: 4, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)

	_, err := inv.TryReserve(context.Background(), "ev1", 1)
	assert.NoError(t, err)

	event := getEvent(t, db, "ev1")
	assert.Equal(t, 5, event.BookedSeats)
	assert.Equal(t, models.EventFullyBooked, event.Status)
}

func TestTryReserveSoldOut(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 5, BookedSeats: 4, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)

	_, err := inv.TryReserve(context.Background(), "ev1", 2)
	assert.ErrorIs(t, err, errs.ErrSoldOut)

	// No side effects on failure.
	event := getEvent(t, db, "ev1")
	assert.Equal(t, 4, event.BookedSeats)
}

func TestTryReserveEventNotFound(t *testing.T) {
	db := setupTestDB(t)
	inv := newInventory(db)

	_, err := inv.TryReserve(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, errs.ErrEventNotFound)
}

func TestTryReservePastCutoff(t *testing.T) {
	db := setupTestDB(t)
	// Event starts in 10 hours but the booking window closed at T-48h.
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(10 * time.Hour),
		TotalSeats: 10, BookedSeats: 0, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)

	_, err := inv.TryReserve(context.Background(), "ev1", 1)
	assert.ErrorIs(t, err, errs.ErrEventClosed)
}

func TestTryReserveCancelledEvent(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 10, BookedSeats: 0, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventCancelled,
	})
	inv := newInventory(db)

	_, err := inv.TryReserve(context.Background(), "ev1", 1)
	assert.ErrorIs(t, err, errs.ErrEventClosed)
}

func TestReleaseFlooredAtZeroAndReopens(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 5, BookedSeats: 5, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventFullyBooked,
	})
	inv := newInventory(db)

	assert.NoError(t, inv.Release(context.Background(), "ev1", 2))
	event := getEvent(t, db, "ev1")
	assert.Equal(t, 3, event.BookedSeats)
	assert.Equal(t, models.EventLive, event.Status)

	// Releasing more than is booked floors at zero.
	assert.NoError(t, inv.Release(context.Background(), "ev1", 10))
	event = getEvent(t, db, "ev1")
	assert.Equal(t, 0, event.BookedSeats)
}

func TestAbortIsIdempotentAndSkipsConfirmed(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 10, BookedSeats: 0, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)
	ctx := context.Background()

	res, err := inv.TryReserve(ctx, "ev1", 2)
	assert.NoError(t, err)

	assert.NoError(t, inv.Abort(ctx, res))
	assert.NoError(t, inv.Abort(ctx, res)) // second abort is a no-op
	assert.Equal(t, 0, getEvent(t, db, "ev1").BookedSeats)

	res2, err := inv.TryReserve(ctx, "ev1", 2)
	assert.NoError(t, err)
	inv.Confirm(res2)
	assert.NoError(t, inv.Abort(ctx, res2)) // confirmed token can't be aborted
	assert.Equal(t, 2, getEvent(t, db, "ev1").BookedSeats)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 5, BookedSeats: 0, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inv.TryReserve(context.Background(), "ev1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	event := getEvent(t, db, "ev1")
	assert.Equal(t, 5, event.BookedSeats)
	assert.Equal(t, models.EventFullyBooked, event.Status)
}

func TestLastSeatScenario(t *testing.T) {
	db := setupTestDB(t)
	seedEvent(t, db, models.Event{
		ID: "ev1", ClubID: "club1", StartTime: time.Now().Add(72 * time.Hour),
		TotalSeats: 5, BookedSeats: 4, PricePerSeat: 50,
		CancellationHours: 48, Status: models.EventLive,
	})
	inv := newInventory(db)
	ctx := context.Background()

	// A takes the last seat.
	_, err := inv.TryReserve(ctx, "ev1", 1)
	assert.NoError(t, err)
	event := getEvent(t, db, "ev1")
	assert.Equal(t, 5, event.BookedSeats)
	assert.Equal(t, models.EventFullyBooked, event.Status)

	// B loses the race.
	_, err = inv.TryReserve(ctx, "ev1", 1)
	assert.ErrorIs(t, err, errs.ErrSoldOut)

	// A cancels, the event reopens.
	assert.NoError(t, inv.Release(ctx, "ev1", 1))
	event = getEvent(t, db, "ev1")
	assert.Equal(t, 4, event.BookedSeats)
	assert.Equal(t, models.EventLive, event.Status)
}
