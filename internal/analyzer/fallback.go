package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/config"
	"github.com/local/cardforge/internal/document"
	"github.com/local/cardforge/internal/metrics"
)

// Gate bounds concurrent access to a provider and tracks cooldown state.
// Acquire blocks on the in-flight semaphore and fails fast while the
// provider is cooling down.
type Gate interface {
	Acquire(ctx context.Context, provider string) (release func(), err error)
	Trip(provider string)
	Clear(provider string)
}

// Downgrade records one fallback transition for the run diagnostic record.
type Downgrade struct {
	Chunk  int    `json:"chunk"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Fallback walks an ordered provider tier list until one succeeds. The last
// tier is expected to be infallible (the heuristic provider); if every tier
// fails the chunk yields no cards but siblings are unaffected.
type Fallback struct {
	tiers   []Provider
	gate    Gate
	timeout time.Duration
}

// NewFallback builds a fallback chain. gate may be nil.
func NewFallback(tiers []Provider, gate Gate, timeout time.Duration) *Fallback {
	return &Fallback{tiers: tiers, gate: gate, timeout: timeout}
}

// BuildChain derives the tier list from configuration. The heuristic
// analyzer always terminates the chain.
func BuildChain(pc config.ProviderConfig) []Provider {
	var tiers []Provider
	switch pc.Engine {
	case config.ProviderOpenAI:
		tiers = append(tiers, NewOpenAI(pc.OpenAIKey, pc.OpenAIModel))
		if pc.LocalModelURL != "" {
			tiers = append(tiers, NewLocal(pc.LocalModelURL, pc.LocalModelName))
		}
	case config.ProviderTransformers:
		tiers = append(tiers, NewLocal(pc.LocalModelURL, pc.LocalModelName))
	}
	return append(tiers, NewHeuristic())
}

// Analyze runs one chunk through the chain. It returns the drafts, the name
// of the provider that served them and any downgrade transitions taken.
func (f *Fallback) Analyze(ctx context.Context, req Request) ([]document.DraftCard, string, []Downgrade) {
	if req.Quota <= 0 {
		return nil, "", nil
	}

	var downgrades []Downgrade

	for i, p := range f.tiers {
		drafts, err := f.tryProvider(ctx, p, req)
		if err == nil {
			metrics.IncChunkAnalyzed(p.Name())
			return drafts, p.Name(), downgrades
		}

		reason := err.Error()
		if errors.Is(err, ErrRateLimited) {
			reason = "rate_limited"
			if f.gate != nil {
				f.gate.Trip(p.Name())
			}
		}

		log.Warn().
			Int("chunk", req.Chunk.Index).
			Str("provider", p.Name()).
			Err(err).
			Msg("provider failed, falling back")

		if i+1 < len(f.tiers) {
			next := f.tiers[i+1].Name()
			downgrades = append(downgrades, Downgrade{
				Chunk:  req.Chunk.Index,
				From:   p.Name(),
				To:     next,
				Reason: reason,
			})
			metrics.IncDowngrade(p.Name(), next)
		}
	}

	log.Error().Int("chunk", req.Chunk.Index).Msg("all providers failed for chunk")
	return nil, "", downgrades
}

func (f *Fallback) tryProvider(ctx context.Context, p Provider, req Request) ([]document.DraftCard, error) {
	if f.gate != nil {
		release, err := f.gate.Acquire(ctx, p.Name())
		if err != nil {
			return nil, &ProviderError{Provider: p.Name(), Err: err}
		}
		defer release()
	}

	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	drafts, err := p.Generate(callCtx, req)
	if err != nil {
		metrics.ObserveProvider(p.Name(), "error", time.Since(start))
		return nil, err
	}
	metrics.ObserveProvider(p.Name(), "ok", time.Since(start))

	if f.gate != nil {
		f.gate.Clear(p.Name())
	}
	return drafts, nil
}
