// Package umbrella talks to the Cisco Umbrella App Discovery and Policies
// REST APIs on behalf of the extractor and the list manager.
package umbrella

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/domain"
)

// Error message constants for consistent error handling
const (
	errBaseURLRequired  = "base URL is required"
	errAuthURLRequired  = "auth URL is required"
	errCredentials      = "client id and secret are required"
	errInvalidBaseURL   = "invalid base URL %q: %w"
	errEncodeBody       = "encode request body: %w"
	errBuildRequest     = "build request: %w"
	errReadBody         = "read response body: %v"
	errMalformed        = "malformed response"
	errTokenRejected    = "token request rejected"
	errTokenFailed      = "token request failed"
	errPagination       = "pagination did not terminate after %d pages"
	errTransport        = "request failed"
	errInBandRejected   = "rejected in response body"
	errMissingListID    = "created list has no id"
	errNonPositiveBatch = "batch size must be positive"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultPageLimit = 100
	defaultBatchSize = 500
	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 32 << 20
	// maxMessageBytes bounds the response excerpt carried by a RemoteError.
	maxMessageBytes = 512
)

// maxPages stops runaway pagination against a misbehaving server. Reaching
// it is an error so a truncated inventory is never taken as complete.
var maxPages = 10000

// tokenRejectionCodes are the OAuth2 error codes that mean the credentials
// themselves were refused.
var tokenRejectionCodes = map[string]bool{
	"invalid_client":      true,
	"unauthorized_client": true,
	"invalid_grant":       true,
}

// Options configures a Client.
type Options struct {
	// required parameters
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	// tuning; zero values take defaults
	Timeout   time.Duration
	RetryMax  int
	PageLimit int
	BatchSize int
	Logger    log.Logger
	// options to inject for testing purposes
	HTTPClient *http.Client
}

// Client is an authenticated Umbrella API client. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	base      *url.URL
	pageLimit int
	batchSize int
	logger    log.Logger
}

// NewClient validates opts and builds a Client. Unless opts.HTTPClient is
// set, requests carry client-credentials tokens obtained from opts.AuthURL.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf(errBaseURLRequired)
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		if err == nil {
			err = errors.New("missing scheme or host")
		}
		return nil, fmt.Errorf(errInvalidBaseURL, opts.BaseURL, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	hc := opts.HTTPClient
	if hc == nil {
		if strings.TrimSpace(opts.AuthURL) == "" {
			return nil, fmt.Errorf(errAuthURLRequired)
		}
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrAuthentication, errCredentials)
		}
		hc = newAuthHTTPClient(context.Background(), opts)
	}
	return &Client{
		http:      hc,
		base:      base,
		pageLimit: opts.PageLimit,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}, nil
}

// endpoint joins path segments onto the base URL and attaches query.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.base.JoinPath(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	return q
}

// doJSON performs one API call. body (if non-nil) is sent as JSON; a 2xx
// response is decoded into out (if non-nil). Failures are *domain.RemoteError.
func (c *Client) doJSON(ctx context.Context, op, method, target string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf(errEncodeBody, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf(errBuildRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug(map[string]any{"op": op, "method": method, "url": target}, "umbrella_request")
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf(errReadBody, err), Err: err}
	}
	c.logger.Debug(map[string]any{"op": op, "status": resp.StatusCode, "bytes": len(data)}, "umbrella_response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewRemoteError(op, resp.StatusCode, excerpt(data))
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: errMalformed, Err: err}
	}
	return nil
}

// transportError classifies errors returned by http.Client.Do. Token
// endpoint rejections surface as *oauth2.RetrieveError.
func transportError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		rejected := tokenRejected(status, re.ErrorCode)
		msg, kind := errTokenFailed, domain.ErrRemote
		if rejected {
			msg, kind = errTokenRejected, domain.ErrAuthentication
		}
		if re.ErrorCode != "" {
			msg += ": " + re.ErrorCode
		} else if len(re.Body) > 0 {
			msg += ": " + excerpt(re.Body)
		}
		return &domain.RemoteError{Op: op, StatusCode: status, Message: msg, Err: kind}
	}
	return &domain.RemoteError{Op: op, Message: errTransport, Err: err}
}

// tokenRejected reports whether a token endpoint failure means bad
// credentials. Rate limiting and server errors do not.
func tokenRejected(status int, code string) bool {
	if tokenRejectionCodes[code] {
		return true
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// paginationError reports a listing that hit maxPages without ending.
func paginationError(op string) error {
	return &domain.RemoteError{Op: op, Message: fmt.Sprintf(errPagination, maxPages), Err: domain.ErrRemote}
}

// excerpt returns a single-line, bounded view of a response body.
func excerpt(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if len(s) > maxMessageBytes {
		cut := maxMessageBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
