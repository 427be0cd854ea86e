package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dkazmin/tileharvest/internal/airtable"
	"github.com/dkazmin/tileharvest/internal/feed"
	"github.com/dkazmin/tileharvest/internal/logging"
	"github.com/dkazmin/tileharvest/internal/model"
	"github.com/dkazmin/tileharvest/internal/raster"
	"github.com/dkazmin/tileharvest/internal/sentinel"
	"github.com/dkazmin/tileharvest/internal/summary"
	"github.com/dkazmin/tileharvest/internal/worker"
)

// nowFunc is overridable in tests
var nowFunc = time.Now

// Options tune one harvest run
type Options struct {
	PreviewWidth int  // render JPEG previews of saved chips when > 0
	DryRun       bool // stop after filtering, publish nothing
}

// Harvester drives the pipeline: filtered features are processed one at
// a time (imagery fetch, then publish) with no per-feature failure
// aborting the run.
type Harvester struct {
	cfg  *model.Config
	base io.Writer
	opts Options
}

// NewHarvester creates the driving loop. Components are built per run
// so their logs land in that run's log file.
func NewHarvester(cfg *model.Config, base io.Writer, opts Options) *Harvester {
	return &Harvester{cfg: cfg, base: base, opts: opts}
}

// RunStats summarizes one harvest run
type RunStats struct {
	Total     int
	Published int
	Outcomes  []model.Outcome
	LogPath   string
}

// Run executes the full pipeline for one year. Only configuration
// errors and feed-fetch failures are fatal; everything else is a
// per-feature outcome.
func (h *Harvester) Run(ctx context.Context, year int) (*RunStats, error) {
	runLog, err := logging.OpenRunLog(h.cfg.Data.LogDir(), nowFunc())
	if err != nil {
		return nil, err
	}
	defer func() { _ = runLog.Close() }()

	level := logging.ParseLevel(h.cfg.Log.Level)
	log := logging.Tee(h.base, runLog, level, h.cfg.Log.Format)

	limiter := worker.NewLimiter(h.cfg.Rate.RequestsPerSecond, h.cfg.Rate.Burst)
	loader := feed.NewLoader(h.cfg, log)

	imagery, err := sentinel.NewClient(h.cfg, log, limiter)
	if err != nil {
		return nil, err
	}
	publisher, err := airtable.NewPublisher(h.cfg, log, limiter)
	if err != nil {
		return nil, err
	}
	notes, err := summary.NewGenerator(h.cfg, log)
	if err != nil {
		return nil, err
	}

	log.Info("starting tile harvest", "year", year, "log_file", runLog.Path)

	positions, err := loader.FiringPositions(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load firing positions: %w", err)
	}
	log.Info("found firing positions to process", "count", len(positions))

	stats := &RunStats{Total: len(positions), LogPath: runLog.Path}

	if h.opts.DryRun {
		for _, f := range positions {
			log.Info("would process", "id", f.Properties.ID,
				"date", f.Properties.VerifiedDate, "coordinates", f.Geometry.Coordinates)
		}
		return stats, nil
	}

	if err := imagery.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authenticate imagery client: %w", err)
	}

	for idx, f := range positions {
		log.Info("processing position", "index", idx+1, "total", len(positions), "id", f.Properties.ID)

		outcome := h.processOne(ctx, log, imagery, publisher, notes, f)
		stats.Outcomes = append(stats.Outcomes, outcome)
		if outcome.OK() {
			stats.Published++
			log.Info("processed position",
				"id", outcome.FeatureID, "record_id", outcome.RecordID, "image", outcome.ImagePath)
		}
	}

	log.Info("tile harvest complete", "published", stats.Published, "total", stats.Total)
	return stats, nil
}

// processOne runs the imagery-then-publish steps for one feature and
// maps every failure mode onto an explicit outcome.
func (h *Harvester) processOne(
	ctx context.Context,
	log *logging.Logger,
	imagery *sentinel.Client,
	publisher *airtable.Publisher,
	notes *summary.Generator,
	f model.Feature,
) model.Outcome {
	id := f.Properties.ID

	day, ok := f.Properties.VerifiedDay()
	if !ok {
		log.Warn("no usable date for feature", "id", id, "verified_date", f.Properties.VerifiedDate)
		return model.Outcome{FeatureID: id, Status: model.StatusSkippedNoDate}
	}

	imagePath, err := imagery.ProcessFeature(ctx, f, day)
	switch {
	case errors.Is(err, model.ErrValidation):
		log.Warn("feature geometry unusable", "id", id, "error", err)
		return model.Outcome{FeatureID: id, Status: model.StatusSkippedGeometry, Err: err}
	case errors.Is(err, model.ErrUpstream):
		log.Warn("imagery endpoint failed", "id", id,
			"coordinates", f.Geometry.Coordinates, "date", day.Format("2006-01-02"), "error", err)
		return model.Outcome{FeatureID: id, Status: model.StatusNoImagery, Err: err}
	case err != nil:
		log.Error("imagery request error", "id", id, "error", err)
		return model.Outcome{FeatureID: id, Status: model.StatusFailed, Err: err}
	case imagePath == "":
		log.Warn("no suitable imagery found", "id", id,
			"coordinates", f.Geometry.Coordinates, "date", day.Format("2006-01-02"))
		return model.Outcome{FeatureID: id, Status: model.StatusNoImagery}
	}

	if h.opts.PreviewWidth > 0 {
		if _, err := raster.Preview(imagePath, h.opts.PreviewWidth); err != nil {
			log.Warn("preview rendering failed", "id", id, "error", err)
		}
	}

	var note string
	if notes != nil {
		note = notes.Generate(ctx, f)
	}

	recordID, err := publisher.CreateRecord(ctx, f, note, []string{imagePath})
	if err != nil {
		log.Error("record creation failed", "id", id, "error", err)
		return model.Outcome{FeatureID: id, Status: model.StatusFailed, ImagePath: imagePath, Err: err}
	}

	return model.Outcome{
		FeatureID: id,
		Status:    model.StatusPublished,
		RecordID:  recordID,
		ImagePath: imagePath,
	}
}
