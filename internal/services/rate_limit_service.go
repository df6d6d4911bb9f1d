package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitService keeps one token bucket per client key (user id or IP)
type RateLimitService struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitService allows requests per window, refilled evenly, with
// bursts of up to burst requests.
func NewRateLimitService(requests int, window time.Duration, burst int) *RateLimitService {
	if requests <= 0 {
		requests = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitService{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
		idleTTL:  3 * window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Allow takes a token for key. When none is left it reports how long the
// client should wait.
func (s *RateLimitService) Allow(key string) (bool, time.Duration) {
	now := s.now()

	s.mu.Lock()
	cl, ok := s.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = cl
	}
	cl.lastSeen = now
	s.mu.Unlock()

	if cl.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := cl.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	if delay < time.Second {
		delay = time.Second
	}
	return false, delay
}

// Cleanup evicts limiters idle for longer than the TTL
func (s *RateLimitService) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, cl := range s.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
			evicted++
		}
	}
	return evicted
}

// Size returns the number of tracked clients
func (s *RateLimitService) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// StartJanitor evicts idle limiters every interval until Stop is called
func (s *RateLimitService) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Cleanup(); n > 0 {
					logrus.WithField("evicted", n).Debug("Evicted idle rate limiters")
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the janitor
func (s *RateLimitService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
