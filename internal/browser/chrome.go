package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

const (
	clickTimeout = 5 * time.Second
	readTimeout  = 10 * time.Second
)

// ChromeOptions configures the chromedp-backed factory.
type ChromeOptions struct {
	ExecPath string
	Headless bool
	// BaseURL determines the cookie domain for the session cookie.
	BaseURL     string
	CookieName  string
	CookieValue string
	Log         zerolog.Logger
}

// ChromeFactory starts one browser process per session, so lanes share no
// cookies, tabs or renderer state.
type ChromeFactory struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	opts     ChromeOptions
	domain   string
	opened   atomic.Int64
	log      zerolog.Logger
}

// NewChromeFactory prepares an exec allocator. No browser is started until
// NewSession is called.
func NewChromeFactory(opts ChromeOptions) (*ChromeFactory, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("autoplay-policy", "user-gesture-required"),
		chromedp.WindowSize(1366, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &ChromeFactory{
		allocCtx: allocCtx,
		cancel:   cancel,
		opts:     opts,
		domain:   u.Hostname(),
		log:      opts.Log.With().Str("component", "browser").Logger(),
	}, nil
}

// NewSession launches a browser and installs the session cookie.
func (f *ChromeFactory) NewSession(ctx context.Context) (Session, error) {
	id := f.opened.Add(1)
	log := f.log.With().Int64("session", id).Logger()

	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) { log.Debug().Msgf(format, args...) }),
		chromedp.WithErrorf(func(format string, args ...any) { log.Debug().Msgf(format, args...) }),
	)
	s := &chromeSession{ctx: tabCtx, cancel: tabCancel, log: log}

	setup := []chromedp.Action{chromedp.ActionFunc(func(ctx context.Context) error {
		if f.opts.CookieValue == "" {
			return nil
		}
		return network.SetCookies([]*network.CookieParam{{
			Name:     f.opts.CookieName,
			Value:    f.opts.CookieValue,
			Domain:   f.domain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		}}).Do(ctx)
	})}
	if err := s.run(ctx, setup...); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	log.Debug().Msg("browser session started")
	return s, nil
}

// Close stops the allocator and any browsers still running.
func (f *ChromeFactory) Close() error {
	f.cancel()
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// run executes actions on the tab while honoring cancellation of the
// caller's ctx. Cancelling the derived context aborts the actions without
// closing the tab.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, u string) error {
	return s.run(ctx, chromedp.Navigate(u))
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.run(wctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return err
}

func (s *chromeSession) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := s.Evaluate(ctx, visibleScript(selector), &visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	cctx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()
	err := s.run(cctx, chromedp.Click(selector, chromedp.ByQuery))
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return err
}

func (s *chromeSession) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

func (s *chromeSession) Text(ctx context.Context, selector string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	var text string
	if err := s.run(rctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

func (s *chromeSession) HTML(ctx context.Context, selector string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	var html string
	if err := s.run(rctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.log.Debug().Msg("browser session closed")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// visibleScript builds an expression that is true when selector matches an
// element with a non-empty box that is not hidden by CSS.
func visibleScript(selector string) string {
	q, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const st = window.getComputedStyle(el);
  if (st.display === "none" || st.visibility === "hidden") return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
})()`, q)
}
