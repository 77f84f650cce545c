package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Budgets. Send gets a short burst window and a sustained window; edits
// and deletes share one sustained budget. Rejections carry a penalty so
// retry storms back off. Penalties are scoped per class: tripping the
// modify budget must not lock a user out of sending.
const (
	SendBurstLimit  = 5
	SendBurstWindow = time.Second

	SustainedLimit  = 30
	SustainedWindow = time.Minute

	PenaltyDuration = 30 * time.Second

	// MaxTrackedKeys caps how many counters the in-memory store holds.
	// At the cap, requests needing a new counter are rejected with
	// CapacityRetry rather than growing the map without bound.
	MaxTrackedKeys = 10000

	CapacityRetry = time.Second
)

// ErrCapacity is returned by a Store that cannot track another key.
// The limiter treats it as a transient rejection, not an outage.
var ErrCapacity = errors.New("rate limit store at capacity")

// Store holds shared counters. The Redis implementation keeps budgets
// global across instances; Memory is the degraded single-instance fallback.
type Store interface {
	// IncrWindow bumps the counter for key, starting the window on first
	// use, and returns the new count plus time left in the window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	SetPenalty(ctx context.Context, key string, ttl time.Duration) error
	// PenaltyTTL returns the remaining penalty, zero when none is active.
	PenaltyTTL(ctx context.Context, key string) (time.Duration, error)
}

// Limiter enforces per-user budgets. When the shared store fails, it
// degrades to the in-memory store rather than rejecting or admitting
// everything.
type Limiter struct {
	store    Store
	fallback *Memory
}

func New(store Store) *Limiter {
	return &Limiter{
		store:    store,
		fallback: NewMemory(),
	}
}

// AllowSend checks the burst and sustained send budgets. A zero return
// admits the request; otherwise the caller rejects with the duration.
func (l *Limiter) AllowSend(ctx context.Context, userID string) (time.Duration, error) {
	if retry, ok := l.penalty(ctx, "send", userID); !ok {
		return retry, nil
	}

	if retry, over := l.check(ctx, "rl:send:burst:"+userID, SendBurstLimit, SendBurstWindow); retry > 0 {
		if over {
			l.punish(ctx, "send", userID)
		}
		return retry, nil
	}
	if retry, over := l.check(ctx, "rl:send:"+userID, SustainedLimit, SustainedWindow); retry > 0 {
		if over {
			l.punish(ctx, "send", userID)
		}
		return retry, nil
	}
	return 0, nil
}

// AllowModify checks the shared edit/delete budget.
func (l *Limiter) AllowModify(ctx context.Context, userID string) (time.Duration, error) {
	if retry, ok := l.penalty(ctx, "modify", userID); !ok {
		return retry, nil
	}

	if retry, over := l.check(ctx, "rl:modify:"+userID, SustainedLimit, SustainedWindow); retry > 0 {
		if over {
			l.punish(ctx, "modify", userID)
		}
		return retry, nil
	}
	return 0, nil
}

// RunSweep periodically evicts expired fallback windows until ctx is
// cancelled. The shared store expires its own keys.
func (l *Limiter) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.fallback.Sweep()
		}
	}
}

// penalty reports whether the user may proceed; when not, the first
// return is the remaining penalty.
func (l *Limiter) penalty(ctx context.Context, class, userID string) (time.Duration, bool) {
	key := "rl:penalty:" + class + ":" + userID
	ttl, err := l.store.PenaltyTTL(ctx, key)
	if err != nil {
		slog.Warn("rate limiter store unavailable, using local fallback", "error", err)
		ttl, _ = l.fallback.PenaltyTTL(ctx, key)
	}
	if ttl > 0 {
		return ttl, false
	}
	return 0, true
}

// check returns how long to wait before retrying and whether the wait
// comes from an exhausted budget. A capacity rejection is a wait without
// an exhausted budget, so it must not arm a penalty.
func (l *Limiter) check(ctx context.Context, key string, limit int64, window time.Duration) (time.Duration, bool) {
	count, remaining, err := l.store.IncrWindow(ctx, key, window)
	if errors.Is(err, ErrCapacity) {
		return remaining, false
	}
	if err != nil {
		slog.Warn("rate limiter store unavailable, using local fallback", "error", err)
		count, remaining, err = l.fallback.IncrWindow(ctx, key, window)
		if errors.Is(err, ErrCapacity) {
			return remaining, false
		}
	}
	if count > limit {
		return remaining, true
	}
	return 0, false
}

func (l *Limiter) punish(ctx context.Context, class, userID string) {
	key := "rl:penalty:" + class + ":" + userID
	err := l.store.SetPenalty(ctx, key, PenaltyDuration)
	if err == nil || errors.Is(err, ErrCapacity) {
		return
	}
	slog.Warn("rate limiter store unavailable, using local fallback", "error", err)
	_ = l.fallback.SetPenalty(ctx, key, PenaltyDuration)
}

// Memory is a process-local Store. Counters are swept lazily on access
// and by Sweep; the key count is hard-capped at MaxTrackedKeys, and
// requests that would grow past the cap get ErrCapacity.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *Memory) IncrWindow(_ context.Context, key string, dur time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok {
		if len(m.windows) >= MaxTrackedKeys {
			return 0, CapacityRetry, ErrCapacity
		}
		w = &window{expires: now.Add(dur)}
		m.windows[key] = w
	} else if !w.expires.After(now) {
		// Expired slot, reuse in place.
		w.count = 0
		w.expires = now.Add(dur)
	}
	w.count++
	return w.count, w.expires.Sub(now), nil
}

func (m *Memory) SetPenalty(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.windows[key]; !ok && len(m.windows) >= MaxTrackedKeys {
		return ErrCapacity
	}
	m.windows[key] = &window{expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) PenaltyTTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok {
		return 0, nil
	}
	ttl := w.expires.Sub(m.now())
	if ttl <= 0 {
		delete(m.windows, key)
		return 0, nil
	}
	return ttl, nil
}

// Sweep drops expired windows. Run it periodically from the server loop.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, w := range m.windows {
		if !w.expires.After(now) {
			delete(m.windows, key)
		}
	}
}
