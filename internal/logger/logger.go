package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/local/cardforge/internal/config"
)

var (
	global zerolog.Logger
	fwd    *forwarder
)

// Init sets up the global logger: rotated file output, console output and
// optional Axiom forwarding.
func Init(lc config.LoggingConfig, ac config.AxiomConfig) error {
	if lc.File != "" {
		if err := os.MkdirAll(filepath.Dir(lc.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
	}

	var writers []io.Writer

	if lc.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
			Compress:   lc.Compress,
		})
	}

	if lc.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}

	if ac.Send && ac.APIKey != "" {
		f, err := newForwarder(ac)
		if err != nil {
			// continue without Axiom
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			fwd = f
			writers = append(writers, f)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	global = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	log.Logger = global
	return nil
}

// Close flushes any buffered external loggers.
func Close() {
	if fwd != nil {
		_ = fwd.Close()
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// forwarder batches zerolog JSON lines into Axiom ingest calls. Debug lines
// are dropped before they hit the wire.
type forwarder struct {
	client  *axiom.Client
	dataset string
	ch      chan axiom.Event
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func newForwarder(ac config.AxiomConfig) (*forwarder, error) {
	opts := []axiom.Option{axiom.SetToken(ac.APIKey)}
	if ac.OrgID != "" {
		opts = append(opts, axiom.SetOrganizationID(ac.OrgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	dataset := ac.Dataset
	if dataset == "" {
		dataset = "dev_cardforge"
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &forwarder{
		client:  c,
		dataset: dataset,
		ch:      make(chan axiom.Event, 1000),
		ctx:     ctx,
		cancel:  cancel,
	}

	flushEvery := ac.FlushInterval
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	f.wg.Add(1)
	go f.loop(flushEvery)
	return f, nil
}

func (f *forwarder) Write(p []byte) (int, error) {
	var ev map[string]interface{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]interface{}{"message": string(p), "level": "info"}
	}
	if lvl, ok := ev["level"].(string); ok && lvl == "debug" {
		return len(p), nil
	}
	ev["service"] = "cardforge"
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case f.ch <- axiom.Event(ev):
	default:
		// drop if buffer full
	}
	return len(p), nil
}

func (f *forwarder) loop(flushEvery time.Duration) {
	defer f.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, 200)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = f.client.IngestEvents(ctx, f.dataset, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-f.ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case ev := <-f.ch:
			batch = append(batch, ev)
			if len(batch) >= 200 {
				flush()
			}
		}
	}
}

func (f *forwarder) Close() error {
	f.cancel()
	f.wg.Wait()
	return nil
}
