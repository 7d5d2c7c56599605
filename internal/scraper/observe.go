package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

const (
	recordsBinding = "__chatRecords"
	offlineBinding = "__chatOffline"

	// Pending batches buffered between the CDP event goroutine and the
	// session. Beyond this, batches are dropped rather than blocking the
	// browser event loop.
	notificationBuffer = 64
)

// observeSource installs a MutationObserver in the page and receives only
// newly appeared messages through a CDP binding, instead of re-reading the
// whole pane each tick.
type observeSource struct {
	page *page

	notifications chan []domain.RawRecord
	offline       chan struct{}
	offlineOnce   sync.Once
	closeOnce     sync.Once

	// Guards notifications against the CDP event goroutine delivering into
	// a channel Close has already closed.
	mu     sync.Mutex
	closed bool
}

var _ domain.PushSource = (*observeSource)(nil)

func newObserveSource(ctx context.Context, p *page) (*observeSource, error) {
	s := &observeSource{
		page:          p,
		notifications: make(chan []domain.RawRecord, notificationBuffer),
		offline:       make(chan struct{}),
	}

	chromedp.ListenTarget(p.tabCtx, func(ev interface{}) {
		call, ok := ev.(*runtime.EventBindingCalled)
		if !ok {
			return
		}
		switch call.Name {
		case recordsBinding:
			s.handleRecords(call.Payload)
		case offlineBinding:
			s.handleOfflineNotice(call.Payload)
		}
	})

	err := p.runWithin(ctx,
		runtime.AddBinding(recordsBinding),
		runtime.AddBinding(offlineBinding),
		chromedp.Evaluate(observeScript, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to install chat observer: %w", err)
	}

	return s, nil
}

func (s *observeSource) handleRecords(payload string) {
	var records []domain.RawRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		s.page.logger.Warn("Discarding malformed observer batch", "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.notifications <- records:
	default:
		s.page.logger.Warn("Observer batch dropped: notification buffer full", "batch_size", len(records))
	}
}

func (s *observeSource) handleOfflineNotice(payload string) {
	// The binding payload is the JSON-encoded notice string.
	var notice string
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		notice = payload
	}
	if !isOfflineNotice(notice) {
		return
	}
	s.page.logger.Info("Offline notice observed", "notice", notice)
	s.offlineOnce.Do(func() { close(s.offline) })
}

func (s *observeSource) Notifications() <-chan []domain.RawRecord {
	return s.notifications
}

func (s *observeSource) Offline() <-chan struct{} {
	return s.offline
}

func (s *observeSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.notifications)
		s.mu.Unlock()
		err = s.page.Close()
	})
	return err
}
