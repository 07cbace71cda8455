// Package notify implements the in-memory notification feed and the
// transient toast surfaced to the user. The feed is newest-first and
// append-only; toast dismissal is scoped to the notification id so a timer
// for an already-replaced toast never clears its successor.
package notify

import (
	"sync"
	"time"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/xid"
)

const DefaultToastDuration = 3000 * time.Millisecond

type Center struct {
	mu            sync.RWMutex
	feed          []domain.AppNotification
	toast         *domain.AppNotification
	toastDuration time.Duration
}

func NewCenter() *Center {
	return NewCenterWithDuration(DefaultToastDuration)
}

func NewCenterWithDuration(toastDuration time.Duration) *Center {
	if toastDuration <= 0 {
		toastDuration = DefaultToastDuration
	}
	return &Center{
		feed:          make([]domain.AppNotification, 0, 32),
		toastDuration: toastDuration,
	}
}

// Publish appends a notification to the feed, makes it the current toast
// and arms its auto-dismiss timer.
func (c *Center) Publish(title, message, severity string) domain.AppNotification {
	notification := domain.AppNotification{
		ID:        xid.New("NOTIF"),
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}

	c.mu.Lock()
	c.feed = append([]domain.AppNotification{notification}, c.feed...)
	copied := notification
	c.toast = &copied
	c.mu.Unlock()

	time.AfterFunc(c.toastDuration, func() { c.expire(notification.ID) })
	return notification
}

// expire clears the toast only if the given notification is still the one
// being displayed. A toast replaced by a newer one is left alone.
func (c *Center) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.toast != nil && c.toast.ID == id {
		c.toast = nil
	}
}

func (c *Center) Toast() *domain.AppNotification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.toast == nil {
		return nil
	}
	copied := *c.toast
	return &copied
}

// HideToast dismisses whatever toast is currently showing (the explicit
// close button, as opposed to the id-scoped timer).
func (c *Center) HideToast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toast = nil
}

func (c *Center) List() []domain.AppNotification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	feed := make([]domain.AppNotification, len(c.feed))
	copy(feed, c.feed)
	return feed
}

func (c *Center) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.feed {
		c.feed[i].IsRead = true
	}
}

func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = c.feed[:0]
}
