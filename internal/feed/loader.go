package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dkazmin/tileharvest/internal/logging"
	"github.com/dkazmin/tileharvest/internal/model"
	"github.com/dkazmin/tileharvest/internal/util"
)

// Loader fetches the event feed, caches it on disk, and filters it.
// The disk cache is reused across runs until deleted externally; a
// parsed copy is additionally memoized in memory for the life of the
// process so repeated loads skip re-parsing.
type Loader struct {
	cfg        *model.Config
	log        *logging.Logger
	httpClient *http.Client
	robots     *util.RobotsChecker
	parsed     *gocache.Cache
}

// NewLoader creates a feed loader from the shared configuration
func NewLoader(cfg *model.Config, log *logging.Logger) *Loader {
	return &Loader{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: cfg.HTTP.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy),
			},
		},
		robots: util.NewRobotsChecker(cfg.HTTP.UserAgent, 10*time.Second),
		parsed: gocache.New(gocache.NoExpiration, 0),
	}
}

// FetchAndCache downloads the feed and writes it to the cache file,
// overwriting any prior cache. Returns the cache file path.
func (l *Loader) FetchAndCache(ctx context.Context) (string, error) {
	allowed, err := l.robots.Allowed(ctx, l.cfg.Feed.URL)
	if err != nil {
		return "", fmt.Errorf("%w: robots check: %v", model.ErrNetwork, err)
	}
	if !allowed {
		return "", fmt.Errorf("%w: feed fetch disallowed by robots.txt", model.ErrNetwork)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.Feed.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", model.ErrNetwork, err)
	}
	req.Header.Set("User-Agent", l.cfg.HTTP.UserAgent)
	req.Header.Set("Accept", "application/geo+json,application/json;q=0.9,*/*;q=0.8")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch feed: %v", model.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status: %d %s", model.ErrNetwork, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read feed body: %v", model.ErrNetwork, err)
	}

	path := l.cfg.Data.CacheFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	// Plain overwrite; an interrupted write leaves a corrupt cache that
	// must be deleted by hand.
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write cache file: %w", err)
	}

	l.parsed.Delete(path)
	l.log.Info("cached feed", "url", l.cfg.Feed.URL, "path", path, "bytes", len(body))

	return path, nil
}

// LoadCached reads and parses the cached feed document
func (l *Loader) LoadCached() (*model.FeatureCollection, error) {
	path := l.cfg.Data.CacheFile()

	if fc, found := l.parsed.Get(path); found {
		return fc.(*model.FeatureCollection), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: feed cache %s (run a fetch first)", model.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var fc model.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse cached feed: %w", err)
	}

	l.parsed.Set(path, &fc, gocache.NoExpiration)
	return &fc, nil
}

// FilterFiringPositions returns features whose verifiedDate falls in year
// and whose category list contains the configured category, compared
// case-insensitively. Features without a parseable date are skipped
// silently. Source order is preserved.
func (l *Loader) FilterFiringPositions(fc *model.FeatureCollection, year int) []model.Feature {
	var out []model.Feature
	for _, f := range fc.Features {
		day, ok := f.Properties.VerifiedDay()
		if !ok {
			continue
		}
		if day.Year() != year {
			continue
		}
		if !f.Properties.HasCategory(l.cfg.Feed.Category) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FiringPositions ensures a cache exists (fetching only when absent),
// then returns the filtered features. An existing cache is never
// refreshed; delete the file to force a new download.
func (l *Loader) FiringPositions(ctx context.Context, year int) ([]model.Feature, error) {
	if _, err := os.Stat(l.cfg.Data.CacheFile()); os.IsNotExist(err) {
		if _, err := l.FetchAndCache(ctx); err != nil {
			return nil, err
		}
	}

	fc, err := l.LoadCached()
	if err != nil {
		return nil, err
	}

	return l.FilterFiringPositions(fc, year), nil
}

// ExtractCoordinates returns the (longitude, latitude) of a Point feature
func ExtractCoordinates(f model.Feature) (lon, lat float64, err error) {
	if f.Geometry.Type != "Point" {
		return 0, 0, fmt.Errorf("%w: geometry type %q is not Point", model.ErrValidation, f.Geometry.Type)
	}
	if len(f.Geometry.Coordinates) < 2 {
		return 0, 0, fmt.Errorf("%w: point has %d coordinate values", model.ErrValidation, len(f.Geometry.Coordinates))
	}
	return f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], nil
}
