package airtable

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/dkazmin/tileharvest/internal/logging"
	"github.com/dkazmin/tileharvest/internal/model"
	"github.com/dkazmin/tileharvest/internal/util"
	"github.com/dkazmin/tileharvest/internal/worker"
)

// attachmentField is the column holding the processed image chip
const attachmentField = "Satellite Imagery"

// Publisher creates rows in the Airtable base, one per processed
// feature, and attaches the saved image chip to each row.
type Publisher struct {
	cfg        *model.Config
	log        *logging.Logger
	httpClient *http.Client
	limiter    *worker.Limiter
}

// NewPublisher validates store credentials and builds the publisher
func NewPublisher(cfg *model.Config, log *logging.Logger, limiter *worker.Limiter) (*Publisher, error) {
	if cfg.Airtable.APIKey == "" || cfg.Airtable.BaseID == "" {
		return nil, fmt.Errorf("%w: Airtable credentials not set", model.ErrConfig)
	}

	return &Publisher{
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

// PrepareRecord maps feature properties into the table's column schema.
// Coordinates absent from the geometry are omitted rather than erroring.
func (p *Publisher) PrepareRecord(f model.Feature, note string) map[string]any {
	props := f.Properties
	coords := f.Geometry.Coordinates

	var dateStr string
	if props.VerifiedDate != "" {
		dateStr, _, _ = strings.Cut(props.VerifiedDate, "T")
	}

	status := props.Status
	if status == "" {
		status = "Pending Review"
	}

	civCas := "No"
	if props.CivCas {
		civCas = "Yes"
	}

	fields := map[string]any{
		"ID":                  props.ID,
		"Type":                props.Type,
		"Description":         props.Description,
		"Source":              "CIR",
		"Original URL":        props.URL,
		"Geolocation URL":     props.GeolocURL,
		"Status":              status,
		"Country":             props.Country,
		"Province":            props.Province,
		"City":                props.City,
		"Categories":          strings.Join(props.Categories, ", "),
		"Violence Level":      props.ViolenceLevel,
		"Civilian Casualties": civCas,
	}
	if dateStr != "" {
		fields["Date"] = dateStr
	}
	if len(coords) > 0 {
		fields["Longitude"] = strconv.FormatFloat(coords[0], 'f', -1, 64)
	}
	if len(coords) > 1 {
		fields["Latitude"] = strconv.FormatFloat(coords[1], 'f', -1, 64)
	}
	if note != "" {
		fields["Analyst Notes"] = note
	}

	return fields
}

// CreateRecord inserts the mapped row and attaches the image to it.
// The attachment field is set, not appended, so at most one image is
// retained per row no matter how many paths are passed; only the last
// existing file is sent. Missing image files are logged and skipped;
// attach failures are logged but never roll back the row. Returns the
// created row id.
func (p *Publisher) CreateRecord(ctx context.Context, f model.Feature, note string, imagePaths []string) (string, error) {
	recordID, err := p.createRow(ctx, p.PrepareRecord(f, note))
	if err != nil {
		return "", fmt.Errorf("create row: %w", err)
	}

	var attachPath string
	for _, imagePath := range imagePaths {
		if _, err := os.Stat(imagePath); os.IsNotExist(err) {
			p.log.Warn("image file not found, skipping attachment", "path", imagePath)
			continue
		}
		attachPath = imagePath
	}

	if attachPath != "" {
		if err := p.attachImage(ctx, recordID, attachPath, attachmentName(f)); err != nil {
			p.log.Error("attach image failed",
				"record_id", recordID, "path", attachPath, "error", err)
		}
	}

	return recordID, nil
}

// attachmentName derives the attachment filename from the event
// identifier plus date when available.
func attachmentName(f model.Feature) string {
	props := f.Properties
	if props.VerifiedDate != "" {
		day, _, _ := strings.Cut(props.VerifiedDate, "T")
		return fmt.Sprintf("%s_%s", props.ID, day)
	}
	return props.ID
}

// attachImage base64-encodes the file and sets the attachment field.
// Each call replaces the field's prior value.
func (p *Publisher) attachImage(ctx context.Context, recordID, imagePath, filename string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("%w: read image: %v", model.ErrAttachment, err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	fields := map[string]any{
		attachmentField: []map[string]string{{
			"url":      "data:image/png;base64," + encoded,
			"filename": filename,
		}},
	}

	if err := p.updateRow(ctx, recordID, fields); err != nil {
		return fmt.Errorf("%w: %v", model.ErrAttachment, err)
	}
	return nil
}

// tableURL is the REST endpoint of the configured base/table
func (p *Publisher) tableURL() string {
	return fmt.Sprintf("%s/v0/%s/%s",
		p.cfg.Airtable.EndpointURL, p.cfg.Airtable.BaseID,
		url.PathEscape(p.cfg.Airtable.TableName))
}

// createRow POSTs a new record and returns its generated id
func (p *Publisher) createRow(ctx context.Context, fields map[string]any) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := p.send(ctx, http.MethodPost, p.tableURL(), fields, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("create response missing record id")
	}
	return result.ID, nil
}

// updateRow PATCHes fields on an existing record
func (p *Publisher) updateRow(ctx context.Context, recordID string, fields map[string]any) error {
	return p.send(ctx, http.MethodPatch, p.tableURL()+"/"+recordID, fields, nil)
}

// send issues one authenticated request with a {"fields": ...} body
func (p *Publisher) send(ctx context.Context, method, rawURL string, fields map[string]any, out any) error {
	if err := p.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Airtable.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return fmt.Errorf("airtable status %d: %s", resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
