package umbrella

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/haukened/risklists/internal/risk/common/log"
)

// newRetryClient builds the transport shared by token and API requests.
// With RetryMax 0 the first rate-limit or server error is returned as is;
// PassthroughErrorHandler keeps the final response so its status survives.
func newRetryClient(opts Options) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = log.NewLeveled(opts.Logger)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc.StandardClient()
}

// newAuthHTTPClient returns an *http.Client that fetches, caches and
// attaches client-credentials bearer tokens. The id and secret travel in
// the basic-auth header as the Umbrella token endpoint expects.
func newAuthHTTPClient(ctx context.Context, opts Options) *http.Client {
	base := newRetryClient(opts)
	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.AuthURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return cc.Client(ctx)
}
