package umbrella

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/domain"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

// newTestClient returns a client that talks to h without OAuth2.
func newTestClient(t *testing.T, h http.Handler, mod ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{
		BaseURL:    srv.URL,
		Logger:     log.NewNoopLogger(),
		HTTPClient: srv.Client(),
	}
	for _, m := range mod {
		m(&opts)
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func tokenHandler(t *testing.T, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		id, secret, ok := r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		if !ok || id != "client-id" || secret != "client-secret" || r.PostForm.Get("grant_type") != "client_credentials" {
			writeJSON(t, w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"access_token": "tok-1", "token_type": "bearer", "expires_in": 3600})
	}
}

func authOptions(srvURL string) Options {
	return Options{
		BaseURL:      srvURL,
		AuthURL:      srvURL + "/auth/v2/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Logger:       log.NewNoopLogger(),
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.EqualError(t, err, errBaseURLRequired)

	_, err = NewClient(Options{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "https://api.example"})
	assert.EqualError(t, err, errAuthURLRequired)

	_, err = NewClient(Options{BaseURL: "https://api.example", AuthURL: "https://api.example/token"})
	assert.ErrorIs(t, err, domain.ErrAuthentication)

	c, err := NewClient(Options{BaseURL: "https://api.example/", HTTPClient: http.DefaultClient})
	require.NoError(t, err)
	assert.Equal(t, defaultPageLimit, c.pageLimit)
	assert.Equal(t, defaultBatchSize, c.batchSize)
	assert.Equal(t, "https://api.example/a/b?limit=5&page=1", c.endpoint(pageQuery(1, 5), "a", "b"))
}

func TestClient_AttachesClientCredentialsToken(t *testing.T) {
	var tokenCalls, apiCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v2/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/policies/v2/destinationlists", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{"data": []any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(authOptions(srv.URL))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = c.ListDestinationLists(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls), "token is cached")
	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls))
}

func TestClient_TokenRejectedIsAuthentication(t *testing.T) {
	var tokenCalls, apiCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v2/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&apiCalls, 1) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := authOptions(srv.URL)
	opts.ClientSecret = "wrong"
	c, err := NewClient(opts)
	require.NoError(t, err)

	_, err = c.ListApplications(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, domain.ExitAuthentication, domain.ExitCode(err))

	var re *domain.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusUnauthorized, re.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&apiCalls))
}

func TestClient_TokenEndpointFailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]string
		want   error
		exit   int
	}{
		{"rate limited", http.StatusTooManyRequests, map[string]string{"message": "rate limited"}, domain.ErrRemote, domain.ExitRemote},
		{"server error", http.StatusBadGateway, map[string]string{"message": "upstream"}, domain.ErrRemote, domain.ExitRemote},
		{"bad request", http.StatusBadRequest, map[string]string{"error": "invalid_request"}, domain.ErrAuthentication, domain.ExitAuthentication},
		{"forbidden", http.StatusForbidden, map[string]string{"message": "no"}, domain.ErrAuthentication, domain.ExitAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiCalls int32
			mux := http.NewServeMux()
			mux.HandleFunc("/auth/v2/token", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			})
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&apiCalls, 1) })
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c, err := NewClient(authOptions(srv.URL))
			require.NoError(t, err)

			_, err = c.ListApplications(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.exit, domain.ExitCode(err))
			var re *domain.RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Zero(t, atomic.LoadInt32(&apiCalls))
		})
	}
}

func TestTokenRejected(t *testing.T) {
	assert.True(t, tokenRejected(http.StatusOK, "invalid_grant"))
	assert.True(t, tokenRejected(http.StatusInternalServerError, "unauthorized_client"))
	assert.True(t, tokenRejected(http.StatusUnauthorized, ""))
	assert.False(t, tokenRejected(http.StatusTooManyRequests, ""))
	assert.False(t, tokenRejected(0, "temporarily_unavailable"))
}

// failingBody errors on the first read.
type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDoJSON_ReadBodyFailure(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: failingBody{}, Header: http.Header{}, Request: r}, nil
	})}
	c, err := NewClient(Options{BaseURL: "https://api.example", HTTPClient: hc, Logger: log.NewNoopLogger()})
	require.NoError(t, err)

	err = c.doJSON(context.Background(), "op", http.MethodGet, c.endpoint(nil, "x"), nil, nil)
	var re *domain.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "read response body: connection reset", re.Message)
	assert.NotContains(t, err.Error(), "%!")
	assert.ErrorIs(t, err, domain.ErrRemote)
}

func TestDoJSON_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAuthentication},
		{http.StatusForbidden, domain.ErrAuthentication},
		{http.StatusNotFound, domain.ErrRemote},
		{http.StatusTooManyRequests, domain.ErrRemote},
		{http.StatusInternalServerError, domain.ErrRemote},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"message": "nope"}`)
			}))
			err := c.doJSON(context.Background(), "probe", http.MethodGet, c.endpoint(nil, "x"), nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var re *domain.RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, "probe", re.Op)
			assert.Contains(t, re.Message, "nope")
		})
	}
}

func TestDoJSON_MalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items": [`)
	}))
	var out map[string]any
	err := c.doJSON(context.Background(), "probe", http.MethodGet, c.endpoint(nil, "x"), nil, &out)
	assert.ErrorIs(t, err, domain.ErrRemote)
}

func TestDoJSON_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Options{BaseURL: url, HTTPClient: http.DefaultClient, Logger: log.NewNoopLogger()})
	require.NoError(t, err)
	err = c.doJSON(context.Background(), "probe", http.MethodGet, c.endpoint(nil, "x"), nil, nil)
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Equal(t, domain.ExitRemote, domain.ExitCode(err))
}

func TestDoJSON_SendsJSONBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(b))
		w.WriteHeader(http.StatusNoContent)
	}))
	err := c.doJSON(context.Background(), "probe", http.MethodPost, c.endpoint(nil, "x"), map[string]int{"a": 1}, &struct{}{})
	assert.NoError(t, err)
}

func TestRetry_DisabledByDefault(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	var tokenCalls int32
	mux.HandleFunc("/auth/v2/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/reports/v2/appDiscovery/applications", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(authOptions(srv.URL))
	require.NoError(t, err)
	_, err = c.ListApplications(context.Background())

	var re *domain.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetry_Configured(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	var tokenCalls int32
	mux.HandleFunc("/auth/v2/token", tokenHandler(t, &tokenCalls))
	mux.HandleFunc("/reports/v2/appDiscovery/applications", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"items": []any{}, "totalPages": 1})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := authOptions(srv.URL)
	opts.RetryMax = 2
	c, err := NewClient(opts)
	require.NoError(t, err)

	apps, err := c.ListApplications(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", excerpt([]byte(" a\n b\tc ")))
	long := excerpt([]byte(strings.Repeat("x", maxMessageBytes+10)))
	assert.Len(t, long, maxMessageBytes+3)
	assert.True(t, strings.HasSuffix(long, "..."))

	// a multi-byte rune straddling the limit is dropped whole
	multi := excerpt([]byte(strings.Repeat("x", maxMessageBytes-1) + strings.Repeat("é", 4)))
	assert.True(t, utf8.ValidString(multi))
	assert.Equal(t, strings.Repeat("x", maxMessageBytes-1)+"...", multi)
}

// withMaxPages lowers the pagination cap for one test.
func withMaxPages(t *testing.T, n int) {
	t.Helper()
	orig := maxPages
	maxPages = n
	t.Cleanup(func() { maxPages = orig })
}
