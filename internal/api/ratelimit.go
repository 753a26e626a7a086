package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ReminderLimiter bounds how many reminders each user can send. Every user
// gets an independent token bucket.
type ReminderLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewReminderLimiter allows perHour reminders per user per hour on average,
// with bursts of up to burst.
func NewReminderLimiter(perHour, burst int) *ReminderLimiter {
	if perHour <= 0 {
		perHour = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &ReminderLimiter{
		limiters: make(map[int64]*rate.Limiter),
		rate:     rate.Every(time.Hour / time.Duration(perHour)),
		burst:    burst,
	}
}

func (rl *ReminderLimiter) getLimiter(userID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[userID] = limiter
	}
	return limiter
}

// Allow takes a token for userID. When none is available it returns false and
// how long until one will be.
func (rl *ReminderLimiter) Allow(userID int64) (bool, time.Duration) {
	now := time.Now()
	res := rl.getLimiter(userID).ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}
