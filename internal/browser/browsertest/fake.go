// Package browsertest provides a scripted in-memory browser.Session.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snarg/lecturescribe/internal/browser"
)

// Session is a scripted page. Selectors are visible when set with Show or
// revealed by a click or script. It never sleeps.
type Session struct {
	mu sync.Mutex

	// NavigateErr is returned from every Navigate call when set.
	NavigateErr error
	// Reveals lists the selectors that become visible after clicking a selector.
	Reveals map[string][]string
	// Scripts lists the selectors revealed by a script. Scripts not present evaluate to false.
	Scripts map[string][]string
	// Markup holds successive outer-HTML responses per selector; the last one repeats.
	Markup map[string][]string
	// Texts holds the rendered text per selector.
	Texts map[string]string
	// ResetOnNavigate hides every selector on navigation when set.
	ResetOnNavigate bool

	visible   map[string]bool
	navigated []string
	clicked   []string
	closed    bool
}

// NewSession returns an empty page.
func NewSession() *Session {
	return &Session{
		Reveals: map[string][]string{},
		Scripts: map[string][]string{},
		Markup:  map[string][]string{},
		Texts:   map[string]string{},
		visible: map[string]bool{},
	}
}

// Show marks selectors as visible.
func (s *Session) Show(selectors ...string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sel := range selectors {
		s.visible[sel] = true
	}
	return s
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	if s.ResetOnNavigate {
		s.visible = map[string]bool{}
	}
	return s.NavigateErr
}

func (s *Session) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok, _ := s.Visible(ctx, selector); !ok {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	return nil
}

func (s *Session) Visible(_ context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible[selector], nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible[selector] {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	s.clicked = append(s.clicked, selector)
	for _, r := range s.Reveals[selector] {
		s.visible[r] = true
	}
	return nil
}

// Evaluate supports scripts that evaluate to a bool.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reveals, ok := s.Scripts[script]
	for _, r := range reveals {
		s.visible[r] = true
	}
	b, isBool := out.(*bool)
	if !isBool {
		return fmt.Errorf("browsertest: unsupported result type %T", out)
	}
	*b = ok
	return nil
}

func (s *Session) Text(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.Texts[selector]
	if !ok || !s.visible[selector] {
		return "", fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	return text, nil
}

func (s *Session) HTML(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.Markup[selector]
	if len(queue) == 0 || !s.visible[selector] {
		return "", fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	markup := queue[0]
	if len(queue) > 1 {
		s.Markup[selector] = queue[1:]
	}
	return markup, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Navigated returns the URLs loaded so far.
func (s *Session) Navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}

// Clicked returns the selectors clicked so far.
func (s *Session) Clicked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicked...)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Factory hands out sessions built by New. A nil New yields empty sessions.
type Factory struct {
	New func(n int) (*Session, error)

	mu       sync.Mutex
	sessions []*Session
	count    atomic.Int64
	closed   atomic.Bool
}

func (f *Factory) NewSession(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := int(f.count.Add(1)) - 1
	s := NewSession()
	if f.New != nil {
		var err error
		if s, err = f.New(n); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *Factory) Close() error {
	f.closed.Store(true)
	return nil
}

// Sessions returns every session handed out in creation order.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}
