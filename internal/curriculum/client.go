package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes = 16 << 20
	maxPages     = 200
	pageSize     = 200
)

// StatusError is returned when the content API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("content api: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientOptions configures the content API client.
type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// Attempts is the total number of tries per request (default 3).
	Attempts int
	// Backoff is the fixed delay between attempts (default 2s).
	Backoff time.Duration
	// Rate caps requests per second across all callers of this client.
	Rate float64
	Log  zerolog.Logger
}

// Client fetches course metadata, curriculum listings and caption payloads.
// It is safe for concurrent use.
type Client struct {
	baseURL  string
	baseHost string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	attempts uint
	backoff  time.Duration
	log      zerolog.Logger
}

// NewClient creates a content API client.
func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 3
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	var host string
	if bu, err := url.Parse(base); err == nil {
		host = strings.ToLower(bu.Host)
	}
	return &Client{
		baseURL:  base,
		baseHost: host,
		token:    opts.Token,
		http:     hc,
		limiter:  rate.NewLimiter(limit, 1),
		attempts: uint(attempts),
		backoff:  opts.Backoff,
		log:      opts.Log.With().Str("component", "content-api").Logger(),
	}
}

// Course fetches the course title and URL path.
func (c *Client) Course(ctx context.Context, courseID string) (*CourseInfo, error) {
	u := fmt.Sprintf("%s/api-2.0/courses/%s/?fields[course]=id,title,url", c.baseURL, url.PathEscape(courseID))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var w wireCourse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode course %s: %w", courseID, err)
	}
	return &CourseInfo{ID: w.ID, Title: strings.TrimSpace(w.Title), Path: w.URL}, nil
}

// Curriculum fetches every page of the course's curriculum listing.
// Records are returned in upstream order, which is not curriculum order.
func (c *Client) Curriculum(ctx context.Context, courseID string) ([]Record, error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("fields[chapter]", "title,sort_order,created")
	q.Set("fields[lecture]", "title,sort_order,created,asset")
	q.Set("fields[quiz]", "title,sort_order")
	q.Set("fields[practice]", "title,sort_order")
	q.Set("fields[asset]", "asset_type,time_estimation,captions")
	next := fmt.Sprintf("%s/api-2.0/courses/%s/subscriber-curriculum-items/?%s",
		c.baseURL, url.PathEscape(courseID), q.Encode())

	var all []Record
	for page := 1; next != ""; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("curriculum %s: more than %d pages", courseID, maxPages)
		}
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		records, n, err := DecodePage(body)
		if err != nil {
			return nil, fmt.Errorf("decode curriculum page %d: %w", page, err)
		}
		all = append(all, records...)
		next = n
		c.log.Debug().Int("page", page).Int("records", len(records)).Msg("curriculum page fetched")
	}
	return all, nil
}

// Caption fetches a raw timed-text payload. Caption URLs usually point at a
// CDN or a presigned object, so the access token is only sent when the URL
// is on the content API host.
func (c *Client) Caption(ctx context.Context, sourceURL string) (string, error) {
	body, err := c.get(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// LectureURL returns the player URL of a lecture.
func (c *Client) LectureURL(info *CourseInfo, lectureID int64) string {
	path := ""
	if info != nil {
		path = info.Path
	}
	if path == "" && info != nil {
		path = fmt.Sprintf("/course/%d/", info.ID)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return fmt.Sprintf("%s%slearn/lecture/%d", c.baseURL, path, lectureID)
}

// sameHost reports whether u is served by the content API host, port included.
func (c *Client) sameHost(u *url.URL) bool {
	return c.baseHost != "" && strings.EqualFold(u.Host, c.baseHost)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	op := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if c.token != "" && c.sameHost(req.URL) {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json, text/plain, */*")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			serr := &StatusError{StatusCode: resp.StatusCode, URL: redact(u)}
			if isRetryableStatus(resp.StatusCode) {
				return nil, serr
			}
			return nil, backoff.Permanent(serr)
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.backoff)),
		backoff.WithMaxTries(c.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Debug().Err(err).Dur("wait", wait).Str("url", redact(u)).Msg("retrying content api request")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", redact(u), err)
	}
	return body, nil
}

// IsStatus reports whether err carries the given upstream HTTP status.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == code
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// redact strips the query string, which may carry signed caption tokens.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
