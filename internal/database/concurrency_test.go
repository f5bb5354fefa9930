package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBooking_ConcurrentOverlap(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "race.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	owner := createTestUser(t, db, "owner")
	item := createTestItem(t, db, owner.ID, "van", 9000)

	const writers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			<-start
			// every range covers day 10
			b := newBooking(item.ID, owner.ID, day(9+offset%2), day(11+offset%3), models.StatusPending)
			err := db.InsertBooking(context.Background(), b)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrConstraintViolation):
				rejected++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, rejected)

	active, err := db.FindActiveBookings(context.Background(), item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
