package pricing

import (
	"errors"
	"math"
	"testing"
	"time"

	"renit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDays(t *testing.T) {
	at := func(day, hour int) time.Time {
		return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int64
	}{
		{"same day", at(1, 10), at(1, 14), 1},
		{"exactly two days", at(1, 10), at(3, 10), 2},
		{"one second over a day", at(1, 10), at(2, 10).Add(time.Second), 2},
		{"exactly one day", at(1, 0), at(2, 0), 1},
		{"one minute", at(1, 10), at(1, 10).Add(time.Minute), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Days(tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("invalid range", func(t *testing.T) {
		_, err := Days(at(2, 0), at(1, 0))
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
		_, err = Days(at(1, 0), at(1, 0))
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})
}

func TestTotal(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	total, err := Total(4599, start, start.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4599), total)

	total, err = Total(4599, start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(9198), total)

	total, err = Total(0, start, start.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	_, err = Total(-1, start, start.AddDate(0, 0, 1))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = Total(math.MaxInt64, start, start.AddDate(0, 0, 2))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestResolve(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	t.Run("KeepsSuppliedPrice", func(t *testing.T) {
		supplied := int64(1234)
		got, err := Resolve(&supplied, 5000, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), *got)
	})

	t.Run("ComputesWhenAbsent", func(t *testing.T) {
		got, err := Resolve(nil, 5000, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), *got)
	})

	t.Run("RejectsNegativeSupplied", func(t *testing.T) {
		supplied := int64(-5)
		_, err := Resolve(&supplied, 5000, start, end)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
