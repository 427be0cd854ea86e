package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkazmin/tileharvest/internal/logging"
	"github.com/dkazmin/tileharvest/internal/model"
	"github.com/dkazmin/tileharvest/internal/util"
	"github.com/dkazmin/tileharvest/internal/worker"
)

// Client talks to the Copernicus Dataspace Process API. It owns a single
// mutable bearer token, refreshed in place; no other component sees it.
type Client struct {
	cfg        *model.Config
	log        *logging.Logger
	httpClient *http.Client
	limiter    *worker.Limiter
	token      string
}

// NewClient validates credentials and builds the imagery client.
// Call Authenticate before issuing requests.
func NewClient(cfg *model.Config, log *logging.Logger, limiter *worker.Limiter) (*Client, error) {
	if cfg.Copernicus.Username == "" || cfg.Copernicus.Password == "" {
		return nil, fmt.Errorf("%w: Copernicus credentials not set", model.ErrConfig)
	}

	return &Client{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: cfg.HTTP.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy),
			},
		},
		limiter: limiter,
	}, nil
}

// Authenticate performs a password-grant token exchange and stores the
// bearer token for subsequent requests.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Copernicus.Username},
		"password":   {c.cfg.Copernicus.Password},
		"client_id":  {c.cfg.Copernicus.ClientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Copernicus.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: token endpoint status %d", model.ErrUpstream, resp.StatusCode)
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tokenData.AccessToken == "" {
		return fmt.Errorf("%w: token response missing access_token", model.ErrUpstream)
	}

	c.token = tokenData.AccessToken
	c.log.Debug("refreshed access token")
	return nil
}

// Process API request payload

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds boundsSpec `json:"bounds"`
	Data   []dataSpec `json:"data"`
}

type boundsSpec struct {
	Properties crsProperties `json:"properties"`
	BBox       []float64     `json:"bbox"`
}

type crsProperties struct {
	CRS string `json:"crs"`
}

type dataSpec struct {
	DataFilter dataFilter     `json:"dataFilter"`
	Processing processingSpec `json:"processing"`
	Type       string         `json:"type"`
}

type dataFilter struct {
	TimeRange        timeRange `json:"timeRange"`
	MosaickingOrder  string    `json:"mosaickingOrder"`
	PreviewMode      string    `json:"previewMode"`
	MaxCloudCoverage int       `json:"maxCloudCoverage,omitempty"`
}

type timeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processingSpec struct {
	Upsampling   string `json:"upsampling"`
	Downsampling string `json:"downsampling"`
}

type processOutput struct {
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Responses []responseSpec `json:"responses"`
}

type responseSpec struct {
	Identifier string     `json:"identifier"`
	Format     formatSpec `json:"format"`
}

type formatSpec struct {
	Type string `json:"type"`
}

// buildRequest assembles the process payload for one point and date
func (c *Client) buildRequest(lon, lat float64, targetDate time.Time) processRequest {
	w := c.cfg.Copernicus.WindowDays
	start := targetDate.AddDate(0, 0, -w)
	end := targetDate.AddDate(0, 0, w)

	bbox := BuildBBox(lon, lat, c.cfg.Copernicus.BufferKM)

	return processRequest{
		Input: processInput{
			Bounds: boundsSpec{
				Properties: crsProperties{CRS: bbox.CRS},
				BBox:       bbox.Bounds(),
			},
			Data: []dataSpec{{
				DataFilter: dataFilter{
					TimeRange: timeRange{
						From: start.Format("2006-01-02") + "T00:00:00.000Z",
						To:   end.Format("2006-01-02") + "T23:59:59.999Z",
					},
					MosaickingOrder:  "mostRecent",
					PreviewMode:      "EXTENDED_PREVIEW",
					MaxCloudCoverage: c.cfg.Copernicus.MaxCloudCoverage,
				},
				Processing: processingSpec{
					Upsampling:   "BICUBIC",
					Downsampling: "NEAREST",
				},
				Type: c.cfg.Copernicus.CollectionID,
			}},
		},
		Output: processOutput{
			Width:  c.cfg.Copernicus.OutputWidth,
			Height: c.cfg.Copernicus.OutputHeight,
			Responses: []responseSpec{{
				Identifier: "default",
				Format:     formatSpec{Type: "image/png"},
			}},
		},
		Evalscript: evalscript,
	}
}

// RequestImage asks the process endpoint for an image chip around
// (lon, lat) within the configured window of targetDate and writes it
// under the sentinel data directory. Returns the written path, or ""
// when the endpoint produced no usable image.
func (c *Client) RequestImage(ctx context.Context, lon, lat float64, targetDate time.Time) (string, error) {
	payload, err := json.Marshal(c.buildRequest(lon, lat, targetDate))
	if err != nil {
		return "", fmt.Errorf("marshal process request: %w", err)
	}

	resp, err := c.postProcess(ctx, payload)
	if err != nil {
		return "", err
	}

	// One re-authentication per request on authorization failure
	if resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		c.log.Debug("got 403 from process endpoint, refreshing token")
		if err := c.Authenticate(ctx); err != nil {
			return "", fmt.Errorf("re-authenticate: %w", err)
		}
		resp, err = c.postProcess(ctx, payload)
		if err != nil {
			return "", err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: process endpoint status %d", model.ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		// The endpoint reports processing failures as JSON with a 2xx
		// status; treat as "no image", not a hard failure.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		c.log.Error("process endpoint returned error body",
			"lon", lon, "lat", lat, "body", string(body))
		return "", nil
	case !strings.Contains(contentType, "image/png"):
		c.log.Error("unexpected content type from process endpoint",
			"content_type", contentType, "lon", lon, "lat", lat)
		return "", nil
	}

	raster, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read raster body: %w", err)
	}

	dir := c.cfg.Data.SentinelDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create sentinel dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("sentinel_%s_%.6f_%.6f.png",
		targetDate.Format("20060102"), lon, lat))
	if err := os.WriteFile(path, raster, 0o644); err != nil {
		return "", fmt.Errorf("write raster file: %w", err)
	}

	c.log.Info("saved processed image", "path", path, "bytes", len(raster))
	return path, nil
}

// postProcess submits the payload with the current bearer token
func (c *Client) postProcess(ctx context.Context, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx, c.cfg.Copernicus.ProcessURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Copernicus.ProcessURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}
	return resp, nil
}

// ProcessFeature validates the feature geometry and requests imagery
// around it for targetDate.
func (c *Client) ProcessFeature(ctx context.Context, f model.Feature, targetDate time.Time) (string, error) {
	if f.Geometry.Type != "Point" {
		return "", fmt.Errorf("%w: geometry type %q is not Point", model.ErrValidation, f.Geometry.Type)
	}
	if len(f.Geometry.Coordinates) < 2 {
		return "", fmt.Errorf("%w: point has %d coordinate values", model.ErrValidation, len(f.Geometry.Coordinates))
	}

	lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
	c.log.Debug("processing tiles", "lon", lon, "lat", lat, "date", targetDate.Format("2006-01-02"))

	return c.RequestImage(ctx, lon, lat, targetDate)
}
