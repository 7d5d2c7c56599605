package scraper

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

// pollSource re-extracts the complete chat pane on every Poll call. Dedup
// against earlier ticks is the session's job, not ours.
type pollSource struct {
	page *page
}

var _ domain.PollSource = (*pollSource)(nil)

func newPollSource(p *page) *pollSource {
	return &pollSource{page: p}
}

func (s *pollSource) Poll(ctx context.Context) (domain.Snapshot, error) {
	var snap pageSnapshot
	err := s.page.runWithin(ctx, chromedp.Evaluate(extractScript, &snap))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("chat extraction failed: %w", err)
	}

	return domain.Snapshot{
		OfflineDetected: isOfflineNotice(snap.NoticeText),
		Records:         snap.Records,
	}, nil
}

func (s *pollSource) Close() error {
	return s.page.Close()
}
