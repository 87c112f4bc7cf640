// Package transfer fetches remote deployment artifacts and normalizes their encodings
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultDownloadTimeout = 180 * time.Second
)

// ErrEmptyBody is returned when the server answers with no content
var ErrEmptyBody = errors.New("empty response body")

// StatusError is returned for non-success http statuses
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request to %s failed with status code: %d", e.URL, e.Code)
	}
	return fmt.Sprintf("request to %s failed with status code: %d: %s", e.URL, e.Code, e.Body)
}

// Client for the remote asset service
type Client struct {
	base     *url.URL
	http     *http.Client
	download *http.Client
	logger   zerolog.Logger
}

// Option configures a client
type Option func(*Client)

// WithTimeout sets the timeout of a single request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithDownloadTimeout sets the timeout used when following a direct download link
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.download.Timeout = d
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the asset service at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", baseURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: defaultTimeout},
		download: &http.Client{Timeout: defaultDownloadTimeout},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// URL resolves an asset path against the base url
func (c *Client) URL(path string) string {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	return c.base.ResolveReference(ref).String()
}

// FetchText fetches a text artifact
func (c *Client) FetchText(ctx context.Context, path string) (string, error) {
	resp, err := c.get(ctx, c.http, c.URL(path))
	if err != nil {
		return "", err
	}

	return c.resolveText(ctx, path, resp)
}

// resolveText decodes a text response, following a direct link when it carries one
func (c *Client) resolveText(ctx context.Context, path string, resp response) (string, error) {
	text, link := decodeText(resp.body, resp.contentType)
	if link != "" {
		c.logger.Debug().Str("path", path).Str("link", link).Msg("following direct link")
		var err error
		resp, err = c.get(ctx, c.download, link)
		if err != nil {
			return "", err
		}
		text = normalizeText(string(resp.body))
	}

	if strings.TrimSpace(text) == "" {
		return "", errs.Wrap(errs.Transport, ErrEmptyBody, "fetch %s", path)
	}

	return text, nil
}

// FetchBinary fetches a binary artifact
func (c *Client) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.get(ctx, c.http, c.URL(path))
	if err != nil {
		return nil, err
	}

	data, link := decodeBinary(resp.body, resp.contentType)
	if link != "" {
		c.logger.Debug().Str("path", path).Str("link", link).Msg("following direct link")
		resp, err = c.get(ctx, c.download, link)
		if err != nil {
			return nil, err
		}
		data = resp.body
	}

	return data, nil
}

// FetchStructured fetches a json artifact and decodes it into v.
// A json document is decoded as is, only a wrapped or linked payload goes through text decoding.
func (c *Client) FetchStructured(ctx context.Context, path string, v interface{}) error {
	resp, err := c.get(ctx, c.http, c.URL(path))
	if err != nil {
		return err
	}

	body := bytes.TrimSpace(resp.body)
	if json.Valid(body) && body[0] != '"' {
		if err := json.Unmarshal(body, v); err != nil {
			return errs.Wrap(errs.Transport, err, "malformed payload from %s", path)
		}
		return nil
	}

	text, err := c.resolveText(ctx, path, resp)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(text), v); err != nil {
		return errs.Wrap(errs.Transport, err, "malformed payload from %s", path)
	}

	return nil
}

type response struct {
	body        []byte
	contentType string
}

func (c *Client) get(ctx context.Context, cl *http.Client, u string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return response{}, errs.Wrap(errs.Transport, err, "failed to build request for %s", u)
	}

	c.logger.Debug().Str("url", u).Msg("fetching")

	resp, err := cl.Do(req)
	if err != nil {
		return response{}, errs.Wrap(errs.Transport, err, "request to %s failed", u)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, errs.Wrap(errs.Transport, err, "failed to read response from %s", u)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response{}, errs.Wrap(errs.Transport, &StatusError{URL: u, Code: resp.StatusCode, Body: snippet(body)}, "")
	}

	if len(body) == 0 {
		return response{}, errs.Wrap(errs.Transport, ErrEmptyBody, "fetch %s", u)
	}

	return response{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
