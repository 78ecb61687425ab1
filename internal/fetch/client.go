// Package fetch provides HTTP clients for the external collaborators of a card:
// the avatar service and the maker stats API.
package fetch

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zkp2p/peercard/internal/config"
)

// HTTPOptions tunes the shared HTTP client construction
type HTTPOptions struct {
	// RetryMax is the number of retries after the first attempt
	RetryMax int

	// Limiter throttles outbound requests; nil means unlimited
	Limiter *rate.Limiter
}

// OptionsFromConfig builds HTTP options for the avatar and stats clients
func OptionsFromConfig(cfg config.Config, limiter *rate.Limiter) HTTPOptions {
	return HTTPOptions{
		RetryMax: cfg.HTTPRetryMax,
		Limiter:  limiter,
	}
}

// NewLimiter creates the outbound rate limiter shared by all clients
func NewLimiter(cfg config.Config) *rate.Limiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
}

// NewRetryClient creates a new HTTP client with retry capabilities
func NewRetryClient(opts HTTPOptions) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = retryLogger{}
	if opts.Limiter != nil {
		c.HTTPClient.Transport = &limitedTransport{
			next:    c.HTTPClient.Transport,
			limiter: opts.Limiter,
		}
	}
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// limitedTransport waits on a rate limiter before every round trip
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// retryLogger routes retryablehttp's leveled logging into logrus
type retryLogger struct{}

func (retryLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{"component": "http"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(l.fields(keysAndValues)).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(l.fields(keysAndValues)).Debug(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(l.fields(keysAndValues)).Trace(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(l.fields(keysAndValues)).Warn(msg)
}
