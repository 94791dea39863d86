package auth

import (
	"sync"
	"time"
)

// RateLimiter throttles repeated login attempts per identifier (usually a
// client IP) within a sliding window.
type RateLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*attemptWindow
	maxAttempts int
	windowSize  time.Duration
}

type attemptWindow struct {
	attempts  int
	resetTime time.Time
}

// NewRateLimiter creates a rate limiter allowing maxAttempts per windowSize
func NewRateLimiter(maxAttempts int, windowSize time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts:    make(map[string]*attemptWindow),
		maxAttempts: maxAttempts,
		windowSize:  windowSize,
	}

	go rl.cleanup()

	return rl
}

// AllowRequest checks if the request should be allowed
func (rl *RateLimiter) AllowRequest(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.attempts[identifier]

	if !exists || now.After(window.resetTime) {
		rl.attempts[identifier] = &attemptWindow{
			attempts:  1,
			resetTime: now.Add(rl.windowSize),
		}
		return true
	}

	window.attempts++
	return window.attempts <= rl.maxAttempts
}

// GetAttempts returns the current attempt count for an identifier
func (rl *RateLimiter) GetAttempts(identifier string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if window, exists := rl.attempts[identifier]; exists {
		if time.Now().After(window.resetTime) {
			return 0
		}
		return window.attempts
	}
	return 0
}

// cleanup periodically removes expired windows
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for id, window := range rl.attempts {
			if now.After(window.resetTime) {
				delete(rl.attempts, id)
			}
		}
		rl.mu.Unlock()
	}
}
