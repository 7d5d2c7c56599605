package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

// Mode selects how a source watches the chat page.
type Mode string

const (
	// ModePoll re-extracts the full pane on an interval.
	ModePoll Mode = "poll"
	// ModeObserve installs a MutationObserver and receives pushes.
	ModeObserve Mode = "observe"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// Config configures browser attachment.
type Config struct {
	Mode              Mode
	Headless          bool
	NavigationTimeout time.Duration
	// BrowserPath points at a Chrome or Chromium binary; empty means let
	// chromedp find one.
	BrowserPath string
	UserAgent   string
	// DebugScreenshotDir, when set, receives a screenshot of the page
	// whenever attachment fails.
	DebugScreenshotDir string
}

func (c Config) validate() error {
	switch c.Mode {
	case ModePoll, ModeObserve:
	default:
		return fmt.Errorf("unknown scrape mode %q", c.Mode)
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive, got %s", c.NavigationTimeout)
	}
	return nil
}

// NewFactory returns a SourceFactory that attaches a headless browser tab
// per stream. Attachment failures come back wrapped in ErrSourceUnavailable
// so callers can tell "stream unreachable" from programming errors.
func NewFactory(cfg Config) (domain.SourceFactory, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return func(ctx context.Context, streamID string) (domain.Source, error) {
		p, err := attachPage(ctx, streamID, cfg)
		if err != nil {
			return nil, err
		}

		switch cfg.Mode {
		case ModeObserve:
			src, err := newObserveSource(ctx, p)
			if err != nil {
				p.Close()
				return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
			}
			return src, nil
		default:
			return newPollSource(p), nil
		}
	}, nil
}
