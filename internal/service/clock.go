package service

import (
	"sync"
	"time"
)

// Clock часы в единой региональной зоне
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// RegionalClock системные часы, приведённые к зоне клиники
type RegionalClock struct {
	loc *time.Location
}

func NewRegionalClock(loc *time.Location) *RegionalClock {
	return &RegionalClock{loc: loc}
}

func (c *RegionalClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *RegionalClock) Location() *time.Location { return c.loc }

// FixedClock управляемые часы для тестов
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Location() *time.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Location()
}

// Set переставляет часы
func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance сдвигает часы вперёд
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
