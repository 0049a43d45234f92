package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/local/cardforge/internal/config"
)

// RedisPinger models the minimal redis capability needed for readiness checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates readiness checks for the external dependencies a
// generation run may touch.
type Checker struct {
	redis         RedisPinger
	s3Bucket      string
	httpClient    *http.Client
	engine        string
	openAIKey     string
	openAIBase    string
	localModelURL string
}

// Options configures the Checker.
type Options struct {
	Redis      RedisPinger
	S3Bucket   string
	HTTPClient *http.Client
	Provider   config.ProviderConfig
	OpenAIBase string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the health endpoint.
type Summary struct {
	Redis      Status `json:"redis"`
	S3         Status `json:"s3"`
	OpenAI     Status `json:"openai"`
	LocalModel Status `json:"local_model"`
}

func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	base := opts.OpenAIBase
	if base == "" {
		base = "https://api.openai.com"
	}
	return &Checker{
		redis:         opts.Redis,
		s3Bucket:      opts.S3Bucket,
		httpClient:    client,
		engine:        opts.Provider.Engine,
		openAIKey:     strings.TrimSpace(opts.Provider.OpenAIKey),
		openAIBase:    strings.TrimRight(base, "/"),
		localModelURL: strings.TrimRight(opts.Provider.LocalModelURL, "/"),
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:      c.checkRedis(ctx),
		S3:         c.checkS3(ctx),
		OpenAI:     c.checkOpenAI(ctx),
		LocalModel: c.checkLocalModel(ctx),
	}
}

// Check verifies the credentials of the configured provider engine before any
// processing starts. Probes for subsystems the engine does not use are
// skipped; a heuristic-only setup always passes.
func (c *Checker) Check(ctx context.Context) error {
	switch c.engine {
	case config.ProviderOpenAI:
		if st := c.checkOpenAI(ctx); !st.OK {
			return fmt.Errorf("openai preflight: %s", st.Message)
		}
	case config.ProviderTransformers:
		if st := c.checkLocalModel(ctx); !st.OK {
			return fmt.Errorf("local model preflight: %s", st.Message)
		}
	}
	return nil
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3Bucket == "" {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	cli := s3.NewFromConfig(cfg)
	if _, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket}); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkOpenAI(ctx context.Context) Status {
	if c.openAIKey == "" {
		return Status{OK: false, Message: "API key missing"}
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.openAIBase+"/v1/models?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+c.openAIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func (c *Checker) checkLocalModel(ctx context.Context) Status {
	if c.localModelURL == "" {
		return Status{OK: false, Message: "Endpoint not configured"}
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.localModelURL+"/health", nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
