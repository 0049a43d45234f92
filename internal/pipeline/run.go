package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/analyzer"
	"github.com/local/cardforge/internal/config"
	"github.com/local/cardforge/internal/coverage"
	"github.com/local/cardforge/internal/deck"
	"github.com/local/cardforge/internal/document"
	"github.com/local/cardforge/internal/export"
	"github.com/local/cardforge/internal/extractor"
	"github.com/local/cardforge/internal/metrics"
	"github.com/local/cardforge/internal/quality"
	"github.com/local/cardforge/internal/store"
	"github.com/local/cardforge/internal/structurer"
)

// StatusMirror persists job status externally so pollers survive restarts.
type StatusMirror interface {
	Set(ctx context.Context, jobID string, st store.Status) error
}

// Archiver uploads a finished deck artifact and returns its location.
type Archiver interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Source describes one input to generate from. Exactly one of Path, Text or
// URL is set.
type Source struct {
	Path     string
	Declared string
	Text     string
	URL      string
	Title    string
}

// Params are the per-run generation knobs.
type Params struct {
	Level       string
	TargetCards int
	Prompt      string
	DeckName    string
}

// Runner executes the full generation pipeline for one job at a time per
// call. It is safe for concurrent jobs.
type Runner struct {
	cfg       config.Config
	ext       *extractor.Extractor
	chain     *analyzer.Fallback
	exporters []export.Exporter
	jobs      *JobStore
	mirror    StatusMirror // optional
	archiver  Archiver     // optional
}

func NewRunner(cfg config.Config, ext *extractor.Extractor, chain *analyzer.Fallback, exporters []export.Exporter, jobs *JobStore) *Runner {
	return &Runner{cfg: cfg, ext: ext, chain: chain, exporters: exporters, jobs: jobs}
}

// WithMirror attaches an external status mirror.
func (r *Runner) WithMirror(m StatusMirror) *Runner {
	r.mirror = m
	return r
}

// WithArchiver attaches a deck artifact archiver.
func (r *Runner) WithArchiver(a Archiver) *Runner {
	r.archiver = a
	return r
}

// Jobs exposes the job registry.
func (r *Runner) Jobs() *JobStore { return r.jobs }

// Generate runs the whole pipeline: extract, structure, plan, analyze,
// review, assemble, export. The job records progress throughout; a fatal
// error marks it failed and is also returned.
func (r *Runner) Generate(ctx context.Context, job *Job, src Source, p Params) error {
	started := time.Now()
	metrics.JobStarted()
	defer metrics.JobFinished()

	fail := func(err error) error {
		job.Fail(err)
		r.mirrorStatus(ctx, job, 100, err.Error())
		metrics.IncJob("failed")
		log.Error().Str("job_id", job.ID).Err(err).Msg("generation failed")
		return err
	}

	job.SetStatus(StatusRunning, "extracting")
	r.mirrorStatus(ctx, job, 5, "extracting document")

	doc, err := r.extract(ctx, src)
	if err != nil {
		return fail(err)
	}

	job.SetStatus(StatusRunning, "structuring")
	chunks := structurer.Chunk(doc, structurer.Config{
		TargetChars: r.cfg.Pipeline.ChunkTargetChars,
		MinChars:    80,
	})
	job.SetTotalChunks(len(chunks))
	r.mirrorStatus(ctx, job, 15, fmt.Sprintf("structured into %d chunks", len(chunks)))

	level := p.Level
	if level == "" {
		level = r.cfg.Coverage.DefaultLevel
	}
	plan := coverage.BuildPlan(doc, chunks, level, p.TargetCards)

	job.SetStatus(StatusRunning, "analyzing")
	drafts, diagnostics := r.analyze(ctx, job, chunks, plan, doc.Language, p.Prompt, level == config.LevelMaximum)

	job.SetStatus(StatusRunning, "reviewing")
	r.mirrorStatus(ctx, job, 80, "reviewing cards")
	reviewed := quality.Review(drafts, func(chunk int) string {
		if chunk >= 0 && chunk < len(chunks) {
			return chunks[chunk].Text
		}
		return ""
	})
	job.AddCards(len(drafts), len(reviewed.Accepted), len(reviewed.Rejected))
	metrics.AddDrafted(len(drafts))
	metrics.AddAccepted(len(reviewed.Accepted))

	job.SetStatus(StatusRunning, "assembling")
	name := p.DeckName
	if name == "" {
		name = doc.Title
	}
	if name == "" {
		name = r.cfg.Export.DefaultDeckName
	}
	finished := deck.Assemble(name, reviewed.Accepted, chunks, plan.Target)

	job.SetStatus(StatusRunning, "exporting")
	r.mirrorStatus(ctx, job, 90, "exporting deck")
	artifact, err := r.export(ctx, finished)
	if err != nil {
		return fail(err)
	}

	if r.archiver != nil && artifact != "" {
		if loc, err := r.archiver.Upload(ctx, artifact); err != nil {
			log.Warn().Str("job_id", job.ID).Err(err).Msg("deck archive upload failed")
		} else {
			log.Info().Str("job_id", job.ID).Str("location", loc).Msg("deck archived")
		}
	}

	job.Finish(&finished, diagnostics, artifact)
	r.mirrorStatus(ctx, job, 100, fmt.Sprintf("done: %d cards", len(finished.Cards)))
	metrics.IncJob("done")

	log.Info().
		Str("job_id", job.ID).
		Int("cards", len(finished.Cards)).
		Int("target", plan.Target).
		Int("downgrades", len(diagnostics)).
		Dur("elapsed", time.Since(started)).
		Msg("generation complete")

	return nil
}

func (r *Runner) extract(ctx context.Context, src Source) (*document.Document, error) {
	switch {
	case src.URL != "":
		return r.ext.FromURL(ctx, src.URL)
	case src.Path != "":
		return r.ext.FromFile(src.Path, src.Declared, src.Title)
	default:
		return r.ext.FromText(src.Text, src.Title)
	}
}

// analyze fans chunks out over a bounded worker pool. Results are indexed by
// chunk position and merged back in document order; a failed chunk degrades
// to whatever its fallback chain produced without touching siblings.
func (r *Runner) analyze(ctx context.Context, job *Job, chunks []document.Chunk, plan coverage.Plan, language, prompt string, lenient bool) ([]document.DraftCard, []analyzer.Downgrade) {
	concurrency := r.cfg.Pipeline.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([][]document.DraftCard, len(chunks))
	downgrades := make([][]analyzer.Downgrade, len(chunks))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range chunks {
		if plan.Quotas[i] <= 0 {
			job.IncrChunksProcessed()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			drafts, _, downs := r.chain.Analyze(ctx, analyzer.Request{
				Chunk:    chunks[i],
				Quota:    plan.Quotas[i],
				Language: language,
				Prompt:   prompt,
				Lenient:  lenient,
			})
			results[i] = drafts
			downgrades[i] = downs
			job.IncrChunksProcessed()
		}(i)
	}
	wg.Wait()

	var merged []document.DraftCard
	var diags []analyzer.Downgrade
	for i := range chunks {
		merged = append(merged, results[i]...)
		diags = append(diags, downgrades[i]...)
	}
	return merged, diags
}

func (r *Runner) export(ctx context.Context, d document.Deck) (string, error) {
	var artifact string
	for i, e := range r.exporters {
		path, err := e.Export(ctx, d)
		if err != nil {
			// Secondary exporters degrade, the first one is required.
			if i == 0 {
				return "", fmt.Errorf("export %s: %w", e.Name(), err)
			}
			log.Warn().Str("exporter", e.Name()).Err(err).Msg("exporter failed")
			continue
		}
		if artifact == "" {
			artifact = path
		}
	}
	return artifact, nil
}

func (r *Runner) mirrorStatus(ctx context.Context, job *Job, progress int, message string) {
	if r.mirror == nil {
		return
	}
	snap := job.Snapshot()
	st := store.Status{
		Status:   string(snap.Status),
		Progress: progress,
		Message:  message,
	}
	if err := r.mirror.Set(ctx, job.ID, st); err != nil {
		log.Debug().Err(err).Msg("status mirror update failed")
	}
}
