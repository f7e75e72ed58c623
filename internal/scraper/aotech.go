package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	indexURL = "https://www.aotech.tw/ntut/index.php"

	// balanceMarker labels the balance figure on the account page and
	// doubles as the post-login success indicator
	balanceMarker = "購電餘額"

	// UnreadableBalance is returned when every extraction strategy fails
	UnreadableBalance = "無法取得餘額"

	loginWait   = 10 * time.Second
	extractWait = 5 * time.Second
)

// balanceXPath is the fixed structural locator for the balance element.
// Brittle but fast; the label-based strategies below back it up.
const balanceXPath = `//*[@id="main"]/div[4]/div[1]/div[2]/div/div[2]/ul/li[3]/span[2]`

const markerXPath = `//*[contains(text(), "購電餘額")]`

var balanceNumberRe = regexp.MustCompile(`\d+\.?\d*`)

// ErrLoginFailed indicates the post-login marker never appeared and the
// page still looks like a login page.
var ErrLoginFailed = errors.New("登入失敗")

// Login navigates to the billing site, submits credentials, and waits for
// the post-login balance marker.
func (s *Session) Login() error {
	runCtx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
	defer cancel()

	s.logger.Info("開始登入流程")

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(indexURL),
		chromedp.WaitVisible(`//a[contains(., "學生登入")]`, chromedp.BySearch),
		chromedp.Click(`//a[contains(., "學生登入")]`, chromedp.BySearch),
		chromedp.WaitVisible(`//input[@placeholder="帳號" or @name="username"]`, chromedp.BySearch),
		chromedp.SendKeys(`//input[@placeholder="帳號" or @name="username"]`, s.username, chromedp.BySearch),
		chromedp.SendKeys(`//input[@placeholder="密碼" or @name="password"]`, s.password, chromedp.BySearch),
		// Pause 3-7 seconds so the submit does not look inhumanly fast
		chromedp.Sleep(time.Duration(3000+rand.Intn(4000))*time.Millisecond),
		chromedp.Click(`//button[contains(., "登入")] | //input[@type="submit" and @value="登入"]`, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}

	s.logger.Info("已送出登入表單", zap.String("username", s.username))

	// The balance marker appearing is the login success signal
	waitCtx, waitCancel := context.WithTimeout(s.ctx, loginWait)
	defer waitCancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(markerXPath, chromedp.BySearch)); err == nil {
		s.logger.Info("登入成功 - 已偵測到購電餘額")
		return nil
	}

	s.logger.Warn("未找到購電餘額，嘗試尋找其他登入指標")

	// No marker: look for an explicit error message, then fall back to
	// checking whether the page navigated away from the login form
	checkCtx, checkCancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer checkCancel()

	var errorText string
	chromedp.Run(checkCtx, chromedp.Evaluate(
		`(() => { const el = document.querySelector('.error, .alert-danger, [class*="error"]'); return el ? el.textContent.trim() : ""; })()`,
		&errorText,
	))
	if errorText != "" {
		return fmt.Errorf("%w: %s", ErrLoginFailed, errorText)
	}

	var currentURL string
	chromedp.Run(checkCtx, chromedp.Evaluate(`window.location.href`, &currentURL))
	if currentURL != "" && !strings.Contains(strings.ToLower(currentURL), "login") {
		s.logger.Info("登入可能成功 - 頁面已跳轉", zap.String("url", currentURL))
		return nil
	}

	return ErrLoginFailed
}

// Balance obtains the current balance text via an ordered chain of
// extraction strategies and parses its numeric value. It never fails:
// when no strategy yields text the unreadable sentinel and 0.0 come back.
func (s *Session) Balance() (string, float64) {
	strategies := []struct {
		name string
		fn   func() (string, error)
	}{
		{"xpath", s.balanceByXPath},
		{"label", s.balanceByLabel},
		{"container", s.balanceByContainer},
	}

	for _, strategy := range strategies {
		text, err := strategy.fn()
		if err != nil {
			s.logger.Warn("取得餘額失敗", zap.String("strategy", strategy.name), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		s.logger.Info("購電餘額", zap.String("balance", text), zap.String("strategy", strategy.name))
		return text, ParseBalanceNumber(text)
	}

	return UnreadableBalance, 0.0
}

// balanceByXPath reads the balance element directly
func (s *Session) balanceByXPath() (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, extractWait)
	defer cancel()

	var text string
	if err := chromedp.Run(runCtx, chromedp.Text(balanceXPath, &text, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("reading balance element: %w", err)
	}
	return text, nil
}

// balanceByLabel finds the element containing the marker phrase and takes
// the text after the first separator
func (s *Session) balanceByLabel() (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, extractWait)
	defer cancel()

	var fullText string
	if err := chromedp.Run(runCtx, chromedp.Text(markerXPath, &fullText, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("reading labeled element: %w", err)
	}

	text, ok := balanceAfterSeparator(fullText)
	if !ok {
		return "", fmt.Errorf("no separator in %q", strings.TrimSpace(fullText))
	}
	return text, nil
}

// balanceByContainer falls back to the marker's parent container and
// strips the marker phrase from its text
func (s *Session) balanceByContainer() (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, extractWait)
	defer cancel()

	var containerText string
	if err := chromedp.Run(runCtx, chromedp.Text(markerXPath+`/..`, &containerText, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("reading marker container: %w", err)
	}
	return balanceFromContainer(containerText), nil
}

// balanceAfterSeparator extracts the part after the first ":" separator
func balanceAfterSeparator(text string) (string, bool) {
	if !strings.Contains(text, ":") {
		return "", false
	}
	parts := strings.SplitN(text, ":", 2)
	return strings.TrimSpace(parts[1]), true
}

// balanceFromContainer removes the marker phrase and any leading separator
func balanceFromContainer(text string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, balanceMarker, ""))
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, ":"))
	return cleaned
}

// ParseBalanceNumber extracts the first run of digits (with an optional
// decimal point) from the balance text. Returns 0.0 when no number is
// present; the markup is not stable enough to be strict here.
func ParseBalanceNumber(text string) float64 {
	match := balanceNumberRe.FindString(text)
	if match == "" {
		return 0.0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.0
	}
	return value
}
