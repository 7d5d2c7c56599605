package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

const chatWaitSelector = "yt-live-chat-renderer"

// chatURL builds the popout chat page address for a video id. The popout
// page carries the chat iframe's content directly, without the player.
func chatURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/live_chat?is_popout=1&v=%s", videoID)
}

// page owns one browser tab attached to a stream's chat. Both source
// flavours are built on top of it.
type page struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *slog.Logger
}

// attachPage launches a tab, navigates to the stream's chat page and waits
// for the chat renderer to appear. The given ctx bounds the navigation; the
// tab itself lives until Close.
func attachPage(ctx context.Context, videoID string, cfg Config) (*page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.BrowserPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BrowserPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	p := &page{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      slog.With("component", "scraper", "stream_id", videoID),
	}

	navCtx, cancelNav := context.WithTimeout(ctx, cfg.NavigationTimeout)
	defer cancelNav()

	err := p.runWithin(navCtx,
		chromedp.Navigate(chatURL(videoID)),
		chromedp.WaitVisible(chatWaitSelector, chromedp.ByQuery),
	)
	if err != nil {
		if cfg.DebugScreenshotDir != "" {
			p.dumpScreenshot(cfg.DebugScreenshotDir, videoID)
		}
		p.Close()
		return nil, fmt.Errorf("failed to attach to chat page for %s: %w: %w", videoID, domain.ErrSourceUnavailable, err)
	}

	p.logger.Info("Attached to live chat page")
	return p, nil
}

// runWithin executes actions on the tab but honours the caller's deadline.
// chromedp ties action lifetime to the tab context, so deadlines are
// enforced by watching both.
func (p *page) runWithin(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(p.tabCtx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *page) dumpScreenshot(dir, videoID string) {
	var buf []byte
	shotCtx, cancel := context.WithTimeout(p.tabCtx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		p.logger.Warn("Failed to capture debug screenshot", "error", err)
		return
	}
	path := fmt.Sprintf("%s/chat-%s-%d.png", dir, videoID, time.Now().Unix())
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		p.logger.Warn("Failed to write debug screenshot", "path", path, "error", err)
		return
	}
	p.logger.Info("Wrote debug screenshot", "path", path)
}

// Close tears the tab and its browser process down.
func (p *page) Close() error {
	p.cancelTab()
	p.cancelAlloc()
	return nil
}
