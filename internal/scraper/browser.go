package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Session owns one headless browser for the lifetime of a single crawl
// attempt. Close must be called on every exit path.
type Session struct {
	ctx           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	username      string
	password      string
	visible       bool
	screenshotDir string
	logger        *zap.Logger
}

// Option configures a Session
type Option func(*Session)

// WithVisible shows the browser window (for debugging)
func WithVisible(visible bool) Option {
	return func(s *Session) { s.visible = visible }
}

// WithScreenshotDir sets where diagnostic screenshots are written
func WithScreenshotDir(dir string) Option {
	return func(s *Session) { s.screenshotDir = dir }
}

// NewSession launches a browser configured for the billing site
func NewSession(ctx context.Context, username, password string, logger *zap.Logger, opts ...Option) (*Session, error) {
	s := &Session{
		username:      username,
		password:      password,
		screenshotDir: "logs",
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !s.visible),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "zh-TW"),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		chromedp.Env("TZ=Asia/Taipei"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser to actually start so a broken Chrome install
	// surfaces here instead of mid-login, and pin the request language
	// to match the site's locale
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "zh-TW,zh;q=0.9"}),
	); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	s.ctx = browserCtx
	s.allocCancel = allocCancel
	s.browserCancel = browserCancel

	logger.Info("瀏覽器啟動成功")
	return s, nil
}

// Close releases the browser and its allocator
func (s *Session) Close() {
	s.browserCancel()
	s.allocCancel()
	s.logger.Info("瀏覽器關閉成功")
}

// Screenshot captures the full page into the screenshot directory and
// returns the file path
func (s *Session) Screenshot(name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	}

	runCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}

	if err := os.MkdirAll(s.screenshotDir, 0755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}

	path := filepath.Join(s.screenshotDir, name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}

	s.logger.Info("螢幕截圖已儲存", zap.String("path", path))
	return path, nil
}
