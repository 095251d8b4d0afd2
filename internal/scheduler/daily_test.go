package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 8}, tod)
	assert.Equal(t, "08:00", tod.String())

	tod, err = ParseTimeOfDay("23:45")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 45}, tod)

	for _, bad := range []string{"", "8am", "24:00", "12:60"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

// go test -v --run TestCheck
func TestCheck(t *testing.T) {
	ctx := context.Background()
	runs := 0
	s := NewDaily(TimeOfDay{Hour: 8}, func(context.Context) error {
		runs++
		return nil
	}, WithLocation(time.UTC))

	assert.False(t, s.check(ctx, at(15, 7, 59)), "before target")
	assert.True(t, s.check(ctx, at(15, 8, 0)), "at target")
	assert.False(t, s.check(ctx, at(15, 8, 1)), "already ran today")
	assert.False(t, s.check(ctx, at(15, 23, 59)), "already ran today")
	assert.Equal(t, "2024-01-15", s.LastRunDate())

	assert.False(t, s.check(ctx, at(16, 7, 0)), "next day before target")
	// a delayed tick still fires once
	assert.True(t, s.check(ctx, at(16, 8, 3)), "next day late tick")
	assert.False(t, s.check(ctx, at(16, 8, 4)))

	assert.Equal(t, 2, runs)
}

func TestCheckCatchesUpAfterMissedMinute(t *testing.T) {
	runs := 0
	s := NewDaily(TimeOfDay{Hour: 8}, func(context.Context) error {
		runs++
		return nil
	}, WithLocation(time.UTC))

	// process was asleep at 08:00 and wakes at 14:30
	assert.True(t, s.check(context.Background(), at(15, 14, 30)))
	assert.Equal(t, 1, runs)
}

func TestCheckRetriesFailedRun(t *testing.T) {
	ctx := context.Background()
	fail := true
	runs := 0
	s := NewDaily(TimeOfDay{Hour: 8}, func(context.Context) error {
		runs++
		if fail {
			return errors.New("rate limited")
		}
		return nil
	}, WithLocation(time.UTC))

	assert.False(t, s.check(ctx, at(15, 8, 0)))
	assert.Empty(t, s.LastRunDate())

	fail = false
	assert.True(t, s.check(ctx, at(15, 8, 1)))
	assert.False(t, s.check(ctx, at(15, 8, 2)))
	assert.Equal(t, 2, runs)
}

func TestCheckUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	runs := 0
	s := NewDaily(TimeOfDay{Hour: 8}, func(context.Context) error {
		runs++
		return nil
	}, WithLocation(loc))

	// 22:30 UTC on the 14th is 07:30 on the 15th in UTC+9
	assert.False(t, s.check(context.Background(), time.Date(2024, 1, 14, 22, 30, 0, 0, time.UTC)))
	// 23:00 UTC is 08:00 local
	assert.True(t, s.check(context.Background(), time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-15", s.LastRunDate())
}

func TestRunTicksWithClock(t *testing.T) {
	fake := clocktesting.NewFakeClock(at(15, 7, 59))
	ran := make(chan time.Time, 4)

	s := NewDaily(TimeOfDay{Hour: 8}, func(context.Context) error {
		ran <- fake.Now()
		return nil
	}, WithLocation(time.UTC), WithClock(fake), WithInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, fake.HasWaiters, time.Second, 5*time.Millisecond)
	select {
	case <-ran:
		t.Fatal("job ran before the configured time")
	default:
	}

	fake.Step(time.Minute)

	select {
	case got := <-ran:
		assert.Equal(t, at(15, 8, 0), got)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run at 08:00")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
