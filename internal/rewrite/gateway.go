package rewrite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
)

// DefaultModel is the provider model used when none is configured
const DefaultModel = "gemini-1.5-flash"

// DefaultTimeout bounds a single provider call
const DefaultTimeout = 60 * time.Second

var errEmptyOutput = errors.New("provider returned no text")

// CredentialSource returns the provider credential. It is consulted on every call.
type CredentialSource func() string

// StaticCredential always returns key
func StaticCredential(key string) CredentialSource {
	return func() string { return key }
}

// Gateway bridges rewrite requests to a text generation provider.
// It makes exactly one provider attempt per request and never retries.
type Gateway struct {
	generator   domain.Generator
	credentials CredentialSource
	model       string
	timeout     time.Duration
	dedupe      bool
	group       singleflight.Group
	breakerCfg  *domain.CircuitBreakerConfig
	breaker     *gobreaker.CircuitBreaker
	recorder    audit.Recorder
	logger      *logrus.Logger
}

// Option is a functional option for Gateway
type Option func(*Gateway)

// WithModel sets the provider model name
func WithModel(model string) Option {
	return func(g *Gateway) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTimeout bounds each provider call. Zero leaves the transport default in place.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithDedupe collapses identical concurrent requests into one provider call
func WithDedupe(enabled bool) Option {
	return func(g *Gateway) {
		g.dedupe = enabled
	}
}

// WithCircuitBreaker fails fast once the provider keeps failing
func WithCircuitBreaker(cfg domain.CircuitBreakerConfig) Option {
	return func(g *Gateway) {
		if cfg.Enabled {
			g.breakerCfg = &cfg
		} else {
			g.breakerCfg = nil
		}
	}
}

// WithRecorder sets the audit recorder
func WithRecorder(r audit.Recorder) Option {
	return func(g *Gateway) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// ConfigOptions translates gateway configuration into options
func ConfigOptions(cfg domain.GatewayConfig) []Option {
	return []Option{
		WithTimeout(cfg.Timeout),
		WithDedupe(cfg.Dedupe),
		WithCircuitBreaker(cfg.CircuitBreaker),
	}
}

// NewGateway creates a gateway calling generator with the credential from creds
func NewGateway(generator domain.Generator, creds CredentialSource, opts ...Option) *Gateway {
	g := &Gateway{
		generator:   generator,
		credentials: creds,
		model:       DefaultModel,
		timeout:     DefaultTimeout,
		recorder:    audit.NopStore{},
		logger:      logrus.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breakerCfg != nil {
		g.breaker = newBreaker(*g.breakerCfg, g.logger)
	}
	return g
}

func newBreaker(cfg domain.CircuitBreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rewrite-provider",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// Model returns the configured provider model
func (g *Gateway) Model() string {
	return g.model
}

// BreakerState reports the circuit breaker state, or "disabled"
func (g *Gateway) BreakerState() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}

// Rewrite sends notes and patientName to the provider and returns its text unchanged.
// Errors are *domain.GatewayError with code MISSING_CREDENTIAL or PROVIDER_ERROR.
func (g *Gateway) Rewrite(ctx context.Context, notes, patientName string) (string, error) {
	start := time.Now()
	requestID := domain.RequestIDFromContext(ctx)
	log := g.logger.WithFields(logrus.Fields{
		"request_id":   requestID,
		"model":        g.model,
		"notes_length": len(notes),
	})

	apiKey := g.credentials()
	if apiKey == "" {
		gwErr := domain.NewMissingCredentialError(requestID)
		log.Error("Provider credential is not configured")
		g.record(ctx, len(notes), 0, start, gwErr)
		return "", gwErr
	}

	output, err := g.generate(ctx, apiKey, BuildPrompt(notes, patientName))
	if err != nil {
		gwErr := domain.NewProviderError(err.Error(), requestID)
		log.WithError(err).WithField("duration_ms", time.Since(start).Milliseconds()).Error("Rewrite failed")
		g.record(ctx, len(notes), 0, start, gwErr)
		return "", gwErr
	}

	log.WithFields(logrus.Fields{
		"output_length": len(output),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Rewrite completed")
	g.record(ctx, len(notes), len(output), start, nil)
	return output, nil
}

// RewriteCase replaces the clinical notes of rec with the rewritten text.
// Records without notes are returned as-is; on error rec is returned unchanged.
func (g *Gateway) RewriteCase(ctx context.Context, rec domain.CaseRecord) (domain.CaseRecord, error) {
	if rec.ClinicalNotes == "" {
		return rec, nil
	}

	output, err := g.Rewrite(ctx, rec.ClinicalNotes, rec.PatientName)
	if err != nil {
		return rec, err
	}
	return rec.WithClinicalNotes(output), nil
}

func (g *Gateway) generate(ctx context.Context, apiKey, prompt string) (string, error) {
	if !g.dedupe {
		return g.call(ctx, apiKey, prompt)
	}

	// the shared call must survive a single caller going away
	ch := g.group.DoChan(g.flightKey(apiKey, prompt), func() (interface{}, error) {
		return g.call(context.WithoutCancel(ctx), apiKey, prompt)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (g *Gateway) call(ctx context.Context, apiKey, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	operation := func() (interface{}, error) {
		text, err := g.generator.Generate(ctx, apiKey, g.model, prompt)
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, errEmptyOutput
		}
		return text, nil
	}

	var (
		result interface{}
		err    error
	)
	if g.breaker != nil {
		result, err = g.breaker.Execute(operation)
	} else {
		result, err = operation()
	}
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return result.(string), nil
}

func (g *Gateway) flightKey(apiKey, prompt string) string {
	h := sha256.New()
	h.Write([]byte(apiKey))
	h.Write([]byte{0})
	h.Write([]byte(g.model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Gateway) record(ctx context.Context, inputLen, outputLen int, start time.Time, err error) {
	event := audit.NewEvent(ctx, audit.OperationRewrite, start, err)
	event.Model = g.model
	event.InputLength = inputLen
	event.OutputLength = outputLen

	if recErr := g.recorder.Record(context.WithoutCancel(ctx), event); recErr != nil {
		g.logger.WithError(recErr).WithField("request_id", event.RequestID).Warn("Failed to record audit event")
	}
}
