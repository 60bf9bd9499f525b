package stream

import (
	"sync"
	"time"

	"github.com/afroash/env-monitor/internal/models"
)

// Backlog is a fixed-capacity ring of the most recent events.
type Backlog struct {
	capacity    int
	events      []*models.Event
	mutex       sync.RWMutex
	totalEvents int64
	lastEvent   time.Time
}

// NewBacklog creates a backlog holding at most capacity events. A capacity
// below 1 disables retention.
func NewBacklog(capacity int) *Backlog {
	if capacity < 0 {
		capacity = 0
	}
	return &Backlog{
		capacity: capacity,
		events:   make([]*models.Event, 0, capacity),
	}
}

// Add appends an event, evicting the oldest when full
func (b *Backlog) Add(event *models.Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.totalEvents++
	b.lastEvent = event.Timestamp
	if b.capacity == 0 {
		return
	}
	if len(b.events) >= b.capacity {
		b.events = b.events[1:] // Remove oldest
	}
	b.events = append(b.events, event)
}

// Snapshot returns the retained events, oldest first
func (b *Backlog) Snapshot() []*models.Event {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	result := make([]*models.Event, len(b.events))
	copy(result, b.events)
	return result
}

// Stats returns statistics about the backlog
func (b *Backlog) Stats() BacklogStats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	stats := BacklogStats{
		TotalEvents:    b.totalEvents,
		RetainedEvents: len(b.events),
		Capacity:       b.capacity,
		LastEvent:      b.lastEvent,
	}
	if n := len(b.events); n > 0 {
		stats.Oldest = b.events[0].Timestamp
		stats.Newest = b.events[n-1].Timestamp
	}
	return stats
}

// BacklogStats contains statistics about the event backlog
type BacklogStats struct {
	TotalEvents    int64     `json:"total_events"`
	RetainedEvents int       `json:"retained_events"` // Replayable now
	Capacity       int       `json:"capacity"`
	Oldest         time.Time `json:"oldest,omitempty"`
	Newest         time.Time `json:"newest,omitempty"`
	LastEvent      time.Time `json:"last_event,omitempty"` // Tracked even when nothing is retained
}
