package dedup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/immich-dedup/pkg/immich"
	"github.com/yourusername/immich-dedup/pkg/journal"
)

// ErrRunInProgress is returned when a cleanup run is started while another one is active.
var ErrRunInProgress = errors.New("duplicate cleanup already running")

// Source is the part of the Immich API a cleanup run needs.
type Source interface {
	GetDuplicates(ctx context.Context) ([]immich.DuplicateGroup, error)
	GetAllAssets(ctx context.Context, pageSize int) ([]immich.Asset, error)
	DeleteAssets(ctx context.Context, assetIDs []string, forceDelete bool) error
}

// Recorder stores finished runs.
type Recorder interface {
	Record(run journal.Run) error
}

// Settings are the fixed parameters of a Finder.
type Settings struct {
	Classifier Classifier
	TieBreak   TieBreak
	PageSize   int
	Force      bool
	// BatchSize caps the IDs per delete request. Zero sends one request.
	BatchSize int
}

// Options select what a single run does.
type Options struct {
	CheckManual bool `json:"checkManual"`
	DryRun      bool `json:"dryRun"`
}

// Report describes a finished run.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DryRun     bool      `json:"dryRun"`
	Plan       *Plan     `json:"plan"`
	Deleted    []string  `json:"deleted"`
}

// Finder plans and executes duplicate cleanup runs against an Immich server.
type Finder struct {
	source   Source
	settings Settings
	recorder Recorder

	mu      sync.Mutex
	running bool
}

// NewFinder creates a Finder. recorder may be nil.
func NewFinder(source Source, settings Settings, recorder Recorder) *Finder {
	return &Finder{
		source:   source,
		settings: settings,
		recorder: recorder,
	}
}

// Plan collects the IDs a run would delete without deleting anything.
func (f *Finder) Plan(ctx context.Context, opts Options) (*Plan, error) {
	c := f.settings.Classifier

	groups, err := f.source.GetDuplicates(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([][]Asset, len(groups))
	for i, g := range groups {
		snapshots[i] = FromImmichAll(g.Assets)
	}

	plan := &Plan{
		DuplicateGroups: len(groups),
		DuplicateAPIIDs: PhoneUploadDuplicates(c, snapshots),
	}

	log.Info().
		Int("groups", plan.DuplicateGroups).
		Int("phone_uploads", len(plan.DuplicateAPIIDs)).
		Msg("Duplicate API found duplicate phone uploads")

	if opts.CheckManual {
		log.Info().Int("page_size", f.settings.PageSize).Msg("Fetching asset metadata for size and filename check")

		assets, err := f.source.GetAllAssets(ctx, f.settings.PageSize)
		if err != nil {
			return nil, err
		}

		manual, err := ResolveManual(c, f.settings.TieBreak, FromImmichAll(assets))
		if err != nil {
			return nil, err
		}

		plan.ManualChecked = true
		plan.ScannedAssets = len(assets)
		plan.Manual = &manual

		for _, ambiguous := range manual.Ambiguous {
			log.Warn().Err(ambiguous).Msg("Skipping ambiguous duplicate group")
		}

		log.Info().
			Int("assets", len(assets)).
			Int("groups", manual.Groups).
			Int("duplicates", len(plan.ManualIDs())).
			Int("ambiguous", len(manual.Ambiguous)).
			Msg("Found duplicates with the same file size and original filename")
	}

	plan.IDs = uniqueIDs(plan.DuplicateAPIIDs, plan.ManualIDs())

	return plan, nil
}

// Run plans a cleanup and, unless opts.DryRun is set, deletes the planned assets.
// A failed delete request stops the run; the error says how many assets were
// already deleted by earlier requests.
func (f *Finder) Run(ctx context.Context, opts Options) (*Report, error) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil, ErrRunInProgress
	}
	f.running = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
	}

	plan, err := f.Plan(ctx, opts)
	report.Plan = plan
	if err == nil {
		switch {
		case opts.DryRun:
			log.Info().Int("count", len(plan.IDs)).Msg("Dry run, not deleting")
		case len(plan.IDs) == 0:
			log.Info().Msg("No duplicates to delete")
		default:
			report.Deleted, err = f.delete(ctx, plan.IDs)
		}
	}
	report.FinishedAt = time.Now()

	f.record(report, opts, err)

	return report, err
}

func (f *Finder) delete(ctx context.Context, ids []string) ([]string, error) {
	size := f.settings.BatchSize
	if size <= 0 || size > len(ids) {
		size = len(ids)
	}

	var deleted []string
	for batch := range slices.Chunk(ids, size) {
		if err := f.source.DeleteAssets(ctx, batch, f.settings.Force); err != nil {
			return deleted, fmt.Errorf("failed to delete %d assets (%d of %d already deleted): %w",
				len(batch), len(deleted), len(ids), err)
		}
		deleted = append(deleted, batch...)

		log.Info().
			Int("batch", len(batch)).
			Int("deleted", len(deleted)).
			Int("total", len(ids)).
			Bool("force", f.settings.Force).
			Msg("Deleted duplicate assets")
	}

	return deleted, nil
}

func (f *Finder) record(report *Report, opts Options, runErr error) {
	if f.recorder == nil {
		return
	}

	run := journal.Run{
		ID:          report.RunID,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		DryRun:      opts.DryRun,
		CheckManual: opts.CheckManual,
		Deleted:     report.Deleted,
	}
	if report.Plan != nil {
		run.Planned = len(report.Plan.IDs)
		run.DuplicateAPICount = len(report.Plan.DuplicateAPIIDs)
		run.ManualCount = len(report.Plan.ManualIDs())
		if report.Plan.Manual != nil {
			run.AmbiguousCount = len(report.Plan.Manual.Ambiguous)
		}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := f.recorder.Record(run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record cleanup run")
	}
}
