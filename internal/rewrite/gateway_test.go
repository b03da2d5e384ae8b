package rewrite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
)

// fakeGenerator counts calls and returns a scripted result
type fakeGenerator struct {
	calls   atomic.Int32
	output  string
	err     error
	block   chan struct{}
	started chan struct{}

	mu         sync.Mutex
	lastKey    string
	lastModel  string
	lastPrompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastKey, f.lastModel, f.lastPrompt = apiKey, model, prompt
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.output, f.err
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (m *memoryRecorder) Record(_ context.Context, ev *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestGateway_MissingCredentialMakesNoCall(t *testing.T) {
	gen := &fakeGenerator{output: "unused"}
	gw := NewGateway(gen, StaticCredential(""), WithLogger(quietLogger()))

	out, err := gw.Rewrite(context.Background(), "canaux calcifiés", "Jean Dupont")

	assert.Empty(t, out)
	require.ErrorIs(t, err, domain.ErrCredentialMissing)
	assert.Equal(t, domain.ErrMissingCredential, domain.ErrorCode(err))
	assert.Equal(t, "API Key missing", domain.PublicMessage(err))
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestGateway_ReturnsProviderTextVerbatim(t *testing.T) {
	gen := &fakeGenerator{output: "Rapport formel..."}
	gw := NewGateway(gen, StaticCredential("test-key"), WithLogger(quietLogger()))

	out, err := gw.Rewrite(context.Background(), "canaux calcifiés", "Jean Dupont")

	require.NoError(t, err)
	assert.Equal(t, "Rapport formel...", out)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, "test-key", gen.lastKey)
	assert.Equal(t, DefaultModel, gen.lastModel)
	assert.Equal(t, BuildPrompt("canaux calcifiés", "Jean Dupont"), gen.lastPrompt)
}

func TestGateway_ReadsCredentialOnEveryCall(t *testing.T) {
	var key atomic.Value
	key.Store("")
	gen := &fakeGenerator{output: "ok"}
	gw := NewGateway(gen, func() string { return key.Load().(string) }, WithLogger(quietLogger()))

	_, err := gw.Rewrite(context.Background(), "notes", "")
	require.ErrorIs(t, err, domain.ErrCredentialMissing)

	key.Store("rotated-key")
	_, err = gw.Rewrite(context.Background(), "notes", "")
	require.NoError(t, err)
	assert.Equal(t, "rotated-key", gen.lastKey)
}

func TestGateway_ProviderFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{err: errors.New("dial tcp: connection refused")}},
		{"empty output", &fakeGenerator{output: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(tt.gen, StaticCredential("k"), WithLogger(quietLogger()))

			out, err := gw.Rewrite(context.Background(), "notes", "Jean Dupont")

			assert.Empty(t, out)
			require.ErrorIs(t, err, domain.ErrProviderFailed)
			assert.Equal(t, "Failed to generate report", domain.PublicMessage(err))
			assert.NotContains(t, err.Error(), "connection refused")
			assert.Equal(t, int32(1), tt.gen.calls.Load(), "exactly one attempt")
		})
	}
}

func TestGateway_Timeout(t *testing.T) {
	gen := &fakeGenerator{output: "late", block: make(chan struct{})}
	gw := NewGateway(gen, StaticCredential("k"), WithTimeout(20*time.Millisecond), WithLogger(quietLogger()))

	_, err := gw.Rewrite(context.Background(), "notes", "")

	require.ErrorIs(t, err, domain.ErrProviderFailed)
	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Details, context.DeadlineExceeded.Error())
}

func TestGateway_CircuitBreakerFailsFast(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("503 unavailable")}
	gw := NewGateway(gen, StaticCredential("k"),
		WithLogger(quietLogger()),
		WithCircuitBreaker(domain.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			Timeout:          time.Minute,
		}),
	)
	assert.Equal(t, "closed", gw.BreakerState())

	for i := 0; i < 2; i++ {
		_, err := gw.Rewrite(context.Background(), "notes", "")
		require.ErrorIs(t, err, domain.ErrProviderFailed)
	}
	assert.Equal(t, "open", gw.BreakerState())

	_, err := gw.Rewrite(context.Background(), "notes", "")
	require.ErrorIs(t, err, domain.ErrProviderFailed)
	assert.Equal(t, int32(2), gen.calls.Load(), "open breaker must not reach the provider")
}

func TestGateway_DedupeCollapsesConcurrentRequests(t *testing.T) {
	gen := &fakeGenerator{
		output:  "Rapport formel...",
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	gw := NewGateway(gen, StaticCredential("k"), WithDedupe(true), WithLogger(quietLogger()))

	const callers = 5
	var wg sync.WaitGroup
	outputs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outputs[i], errs[i] = gw.Rewrite(context.Background(), "canaux calcifiés", "Jean Dupont")
		}(i)
	}

	<-gen.started
	time.Sleep(50 * time.Millisecond)
	close(gen.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Rapport formel...", outputs[i])
	}
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestGateway_RewriteCase(t *testing.T) {
	rec := domain.NewCaseRecord().WithPatientName("Jean Dupont").WithClinicalNotes("canaux calcifiés")

	t.Run("success replaces notes", func(t *testing.T) {
		gw := NewGateway(&fakeGenerator{output: "Rapport formel..."}, StaticCredential("k"), WithLogger(quietLogger()))

		updated, err := gw.RewriteCase(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, "Rapport formel...", updated.ClinicalNotes)
		assert.Equal(t, "canaux calcifiés", rec.ClinicalNotes)
	})

	t.Run("failure leaves notes unchanged", func(t *testing.T) {
		gw := NewGateway(&fakeGenerator{err: errors.New("boom")}, StaticCredential("k"), WithLogger(quietLogger()))

		updated, err := gw.RewriteCase(context.Background(), rec)
		require.ErrorIs(t, err, domain.ErrProviderFailed)
		assert.Equal(t, rec, updated)
	})

	t.Run("empty notes skip the provider", func(t *testing.T) {
		gen := &fakeGenerator{output: "unused"}
		gw := NewGateway(gen, StaticCredential("k"), WithLogger(quietLogger()))

		empty := rec.WithClinicalNotes("")
		updated, err := gw.RewriteCase(context.Background(), empty)
		require.NoError(t, err)
		assert.Equal(t, empty, updated)
		assert.Equal(t, int32(0), gen.calls.Load())
	})
}

func TestGateway_RecordsAuditEvents(t *testing.T) {
	rec := &memoryRecorder{}
	ctx := domain.ContextWithRequestID(context.Background(), "req-42")

	ok := NewGateway(&fakeGenerator{output: "abc"}, StaticCredential("k"), WithRecorder(rec), WithLogger(quietLogger()), WithModel("gemini-2.0-flash"))
	_, err := ok.Rewrite(ctx, "notes", "Jean Dupont")
	require.NoError(t, err)

	missing := NewGateway(&fakeGenerator{}, StaticCredential(""), WithRecorder(rec), WithLogger(quietLogger()))
	_, err = missing.Rewrite(ctx, "notes", "Jean Dupont")
	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "req-42", gwErr.RequestID)

	require.Len(t, rec.events, 2)
	assert.Equal(t, audit.OperationRewrite, rec.events[0].Operation)
	assert.Equal(t, audit.OutcomeSuccess, rec.events[0].Outcome)
	assert.Equal(t, "gemini-2.0-flash", rec.events[0].Model)
	assert.Equal(t, "req-42", rec.events[0].RequestID)
	assert.Equal(t, 5, rec.events[0].InputLength)
	assert.Equal(t, 3, rec.events[0].OutputLength)
	assert.Equal(t, domain.ErrMissingCredential, rec.events[1].Outcome)
}
