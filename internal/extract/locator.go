package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/snarg/lecturescribe/internal/browser"
)

// PanelSelector matches the transcript panel once it is open.
const PanelSelector = `[data-purpose="transcript-panel"]`

// Locator finds and activates the control that opens the transcript panel.
// Activate returns browser.ErrNotFound when nothing matches. A nil error only
// means the control was activated; the caller still confirms the panel.
type Locator interface {
	Name() string
	Activate(ctx context.Context, s browser.Session) error
}

// SelectorLocator clicks the first visible element matching a CSS selector.
type SelectorLocator struct {
	Label    string
	Selector string
}

func (l SelectorLocator) Name() string { return l.Label }

func (l SelectorLocator) Activate(ctx context.Context, s browser.Session) error {
	ok, err := s.Visible(ctx, l.Selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, l.Selector)
	}
	return s.Click(ctx, l.Selector)
}

// ScriptLocator runs an in-page script that clicks a matching element and
// evaluates to true, or evaluates to false when none matched.
type ScriptLocator struct {
	Label  string
	Script string
}

func (l ScriptLocator) Name() string { return l.Label }

func (l ScriptLocator) Activate(ctx context.Context, s browser.Session) error {
	var clicked bool
	if err := s.Evaluate(ctx, l.Script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, l.Label)
	}
	return nil
}

// DefaultLocators is ordered from the most specific identifying attribute to
// the loosest text heuristic.
var DefaultLocators = []Locator{
	SelectorLocator{Label: "data-purpose", Selector: `button[data-purpose="transcript-toggle"]`},
	SelectorLocator{Label: "data-purpose-partial", Selector: `button[data-purpose*="transcript"]`},
	SelectorLocator{Label: "aria-label", Selector: `button[aria-label="Transcript"]`},
	ScriptLocator{Label: "aria-label-heuristic", Script: clickMatchingScript("aria-label", "transcript")},
	ScriptLocator{Label: "visible-text", Script: clickMatchingScript("", "transcript")},
}

// clickMatchingScript builds a script that clicks the first visible button
// whose attribute (or text content when attr is empty) contains needle,
// compared case-insensitively.
func clickMatchingScript(attr, needle string) string {
	a, _ := json.Marshal(attr)
	n, _ := json.Marshal(needle)
	return fmt.Sprintf(`(() => {
  const attr = %s, needle = %s;
  for (const el of document.querySelectorAll("button, [role=button]")) {
    const v = attr ? (el.getAttribute(attr) || "") : (el.innerText || el.textContent || "");
    if (!v.toLowerCase().includes(needle)) continue;
    const r = el.getBoundingClientRect();
    if (r.width === 0 || r.height === 0) continue;
    el.click();
    return true;
  }
  return false;
})()`, a, n)
}
