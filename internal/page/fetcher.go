package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// StatusFetcher returns the current status of every camera.
type StatusFetcher interface {
	FetchStatuses(ctx context.Context) ([]camera.StatusRecord, error)
}

// ErrNotArray is returned when the status endpoint answers with JSON that is
// not an array.
var ErrNotArray = errors.New("status response is not a JSON array")

// HTTPFetcher reads statuses from a camera-status endpoint.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
	Logger zerolog.Logger
}

// NewHTTPFetcher creates a fetcher for url.
func NewHTTPFetcher(url string, logger zerolog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

func (f *HTTPFetcher) FetchStatuses(ctx context.Context) ([]camera.StatusRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching camera status: %w", err)
	}
	defer resp.Body.Close()

	// Like fetch(), any status code is accepted as long as the body decodes.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading camera status: %w", err)
	}
	return DecodeStatuses(body, f.Logger)
}

// DecodeStatuses parses a status array. Entries that fail to decode (an
// unknown status, a malformed timestamp) are logged and skipped; a body
// that is not a JSON array is an error.
func DecodeStatuses(body []byte, logger zerolog.Logger) ([]camera.StatusRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotArray
		}
		return nil, fmt.Errorf("decoding camera status: %w", err)
	}
	if raw == nil {
		// "null"
		return nil, ErrNotArray
	}

	records := make([]camera.StatusRecord, 0, len(raw))
	for i, item := range raw {
		var rec camera.StatusRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("skipping camera status entry")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// StatusSource is satisfied by the store.
type StatusSource interface {
	StatusRecords(ctx context.Context) ([]camera.StatusRecord, error)
}

// StoreFetcher reads statuses in-process instead of over HTTP.
type StoreFetcher struct {
	Source StatusSource
}

func (f StoreFetcher) FetchStatuses(ctx context.Context) ([]camera.StatusRecord, error) {
	return f.Source.StatusRecords(ctx)
}

// FetcherFunc adapts a function to StatusFetcher.
type FetcherFunc func(ctx context.Context) ([]camera.StatusRecord, error)

func (f FetcherFunc) FetchStatuses(ctx context.Context) ([]camera.StatusRecord, error) {
	return f(ctx)
}
