// Package fetch issues the HTTP request for a single tile. It is stateless
// apart from connection reuse in the shared http.Client; retries, caching and
// de-duplication belong to the pipeline above it.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mapcanvas/internal/tile"
)

// Failure taxonomy. Every fetch error wraps exactly one of these so callers
// can classify with errors.Is without parsing strings.
var (
	// ErrInvalidRequest marks a request rejected before any network I/O:
	// missing token or a key outside the valid zoom/row range.
	ErrInvalidRequest = errors.New("invalid tile request")
	// ErrTransport marks a network error or a non-success HTTP status.
	ErrTransport = errors.New("tile transport failure")
	// ErrEmptyPayload marks a success status with a zero-byte body.
	ErrEmptyPayload = errors.New("empty tile payload")
)

// Fixed WMTS query constants for the imagery layer.
const (
	paramService   = "WMTS"
	paramRequest   = "GetTile"
	paramVersion   = "1.0.0"
	paramLayer     = "img"
	paramStyle     = "default"
	paramMatrixSet = "w"
	paramFormat    = "tiles"
)

// The upstream authorizes by token plus header heuristics, so the request
// has to look like it came out of a browser.
const (
	headerUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	headerReferer   = "https://map.tianditu.gov.cn/"
	headerAccept    = "image/webp,image/png,image/*;q=0.8,*/*;q=0.5"
)

// Fetcher downloads single tiles from a fixed set of server shards. The
// shard for a key is (column + row) mod len(endpoints), which spreads load
// without hot-spotting one host.
type Fetcher struct {
	client    *http.Client
	endpoints []string
	token     string
	log       *zap.Logger
}

// New creates a fetcher. endpoints must be non-empty base URLs without a
// trailing slash; token is the opaque access token passed through verbatim.
func New(endpoints []string, token string, log *zap.Logger) (*Fetcher, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one tile endpoint is required")
	}
	return &Fetcher{
		client:    &http.Client{},
		endpoints: endpoints,
		token:     token,
		log:       log,
	}, nil
}

// Fetch downloads the raw image bytes for one tile. It never returns partial
// data: any failure yields nil bytes and an error from the taxonomy above.
func (f *Fetcher) Fetch(ctx context.Context, key tile.Key) ([]byte, error) {
	if f.token == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrInvalidRequest)
	}
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %s out of range", ErrInvalidRequest, key)
	}

	shard := f.endpoints[(key.Column+key.Row)%len(f.endpoints)]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shard, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	q := req.URL.Query()
	q.Set("SERVICE", paramService)
	q.Set("REQUEST", paramRequest)
	q.Set("VERSION", paramVersion)
	q.Set("LAYER", paramLayer)
	q.Set("STYLE", paramStyle)
	q.Set("TILEMATRIXSET", paramMatrixSet)
	q.Set("FORMAT", paramFormat)
	q.Set("TILEMATRIX", strconv.Itoa(key.Zoom))
	q.Set("TILEROW", strconv.Itoa(key.Row))
	q.Set("TILECOL", strconv.Itoa(key.Column))
	q.Set("tk", f.token)
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", headerUserAgent)
	req.Header.Set("Referer", headerReferer)
	req.Header.Set("Accept", headerAccept)

	reqID := uuid.NewString()
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug("tile fetch failed",
			zap.String("request_id", reqID),
			zap.Stringer("tile", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		f.log.Debug("tile fetch rejected",
			zap.String("request_id", reqID),
			zap.Stringer("tile", key),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, key)
	}

	f.log.Debug("tile fetched",
		zap.String("request_id", reqID),
		zap.Stringer("tile", key),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return data, nil
}
