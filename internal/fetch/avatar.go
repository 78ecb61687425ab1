package fetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/zkp2p/peercard/internal/config"
)

// maxAvatarBytes caps the size of a downloaded profile picture
const maxAvatarBytes = 10 << 20

var (
	// ErrAvatarNotFound means the avatar service has no picture for the handle
	ErrAvatarNotFound = errors.New("avatar not found")

	// ErrAvatarUnavailable wraps transport, status and decoding failures
	ErrAvatarUnavailable = errors.New("avatar unavailable")
)

// ImageFetcher loads the profile picture of a social handle
type ImageFetcher interface {
	FetchImage(ctx context.Context, handle string) (image.Image, error)
}

// AvatarClient fetches profile pictures from an unavatar-style service,
// optionally through a pass-through proxy
type AvatarClient struct {
	baseURL    string
	proxyURL   string
	httpClient *retryablehttp.Client
}

// NewAvatarClient creates a new avatar client
func NewAvatarClient(cfg config.Config, opts HTTPOptions) *AvatarClient {
	return &AvatarClient{
		baseURL:    cfg.AvatarURL,
		proxyURL:   cfg.AvatarProxyURL,
		httpClient: NewRetryClient(opts),
	}
}

// AvatarURL returns the URL requested for handle
func (c *AvatarClient) AvatarURL(handle string) string {
	target := strings.TrimRight(c.baseURL, "/") + "/" + url.PathEscape(handle)
	if c.proxyURL == "" {
		return target
	}
	return c.proxyURL + url.QueryEscape(target)
}

// FetchImage downloads and decodes the avatar of handle.
// ErrAvatarNotFound is returned on a 404 so callers can leave the slot empty.
func (c *AvatarClient) FetchImage(ctx context.Context, handle string) (image.Image, error) {
	target := c.AvatarURL(handle)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	logrus.Debugf("Fetching avatar: %s", target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error fetching %s: %v", ErrAvatarUnavailable, handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrAvatarNotFound, handle)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrAvatarUnavailable, resp.StatusCode, string(body))
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: error decoding image: %v", ErrAvatarUnavailable, err)
	}

	logrus.Debugf("Decoded %s avatar for %s (%dx%d)", format, handle, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
