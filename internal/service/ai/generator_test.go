package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elile/backend/internal/metrics"
	"github.com/zhouzirui/elile/backend/internal/model/history"
	"github.com/zhouzirui/elile/backend/internal/model/persona"
)

type fakeEngine struct {
	name  string
	reply string
	err   error
	panic bool
	calls int
	last  Request
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Generate(_ context.Context, req Request) (string, error) {
	f.calls++
	f.last = req
	if f.panic {
		panic("engine exploded")
	}
	return f.reply, f.err
}

func newTestGenerator(t *testing.T, engines ...Engine) (*Generator, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return NewGenerator(persona.DefaultApology, zerolog.Nop(), m, engines...), m
}

func TestGeneratorPrimarySucceeds(t *testing.T) {
	primary := &fakeEngine{name: "primary", reply: "أنا هنا معك"}
	fallback := &fakeEngine{name: "fallback", reply: "unused"}
	gen, m := newTestGenerator(t, primary, fallback)

	ctx := []history.Message{{Role: history.RoleUser, Content: "hi"}, {Role: history.RoleAssistant, Content: "hello"}}
	got := gen.Generate(t.Context(), "s1", ctx, "I feel lonely", "sadness")

	require.Equal(t, "أنا هنا معك", got)
	require.Equal(t, 1, primary.calls)
	require.Zero(t, fallback.calls)
	require.Equal(t, ctx, primary.last.Context)
	require.Equal(t, "sadness", primary.last.Emotion)
	require.Equal(t, float64(1), testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("primary", "success")))
}

func TestGeneratorFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("rate limited")}
	fallback := &fakeEngine{name: "fallback", reply: "fallback reply"}
	gen, m := newTestGenerator(t, primary, fallback)

	got := gen.Generate(t.Context(), "s1", nil, "text", "neutral")

	require.Equal(t, "fallback reply", got)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, fallback.calls)
	require.Equal(t, float64(1), testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("primary", "failure")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("fallback", "success")))
}

func TestGeneratorReturnsApologyWhenAllFail(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("down")}
	fallback := &fakeEngine{name: "fallback", err: errors.New("quota")}
	gen, m := newTestGenerator(t, primary, fallback)

	got := gen.Generate(t.Context(), "s1", nil, "text", "neutral")

	require.Equal(t, persona.DefaultApology, got)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, fallback.calls)
	require.Equal(t, float64(1), testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("apology", "success")))
}

func TestGeneratorTreatsEmptyReplyAsFailure(t *testing.T) {
	primary := &fakeEngine{name: "primary", reply: ""}
	fallback := &fakeEngine{name: "fallback", reply: "ok"}
	gen, _ := newTestGenerator(t, primary, fallback)

	require.Equal(t, "ok", gen.Generate(t.Context(), "s1", nil, "text", "neutral"))
}

func TestGeneratorRecoversEnginePanic(t *testing.T) {
	primary := &fakeEngine{name: "primary", panic: true}
	fallback := &fakeEngine{name: "fallback", reply: "still here"}
	gen, _ := newTestGenerator(t, primary, fallback)

	require.NotPanics(t, func() {
		require.Equal(t, "still here", gen.Generate(t.Context(), "s1", nil, "text", "neutral"))
	})
}

func TestGeneratorWithoutEngines(t *testing.T) {
	gen := NewGenerator("", zerolog.Nop(), nil, nil, nil)

	require.Empty(t, gen.Engines())
	require.Equal(t, persona.DefaultApology, gen.Generate(t.Context(), "s1", nil, "text", "neutral"))
}

func TestGeneratorEngineOrder(t *testing.T) {
	gen, _ := newTestGenerator(t, &fakeEngine{name: "primary"}, nil, &fakeEngine{name: "fallback"})
	require.Equal(t, []string{"primary", "fallback"}, gen.Engines())
}

type stallingEngine struct {
	name  string
	calls int
}

func (s *stallingEngine) Name() string { return s.name }

func (s *stallingEngine) Generate(ctx context.Context, _ Request) (string, error) {
	s.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGeneratorFallsBackWhenPrimaryStalls(t *testing.T) {
	primary := &stallingEngine{name: "primary"}
	fallback := &fakeEngine{name: "fallback", reply: "معك، خذ راحتك"}
	gen, m := newTestGenerator(t, primary, fallback)
	gen.WithAttemptTimeout(50 * time.Millisecond)

	started := time.Now()
	got := gen.Generate(context.Background(), "s1", nil, "hello", "neutral")

	require.Equal(t, "معك، خذ راحتك", got)
	require.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, fallback.calls)
	require.Equal(t, float64(1), testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("primary", "failure")))
}

func TestGeneratorWithoutAttemptTimeoutKeepsCallerContext(t *testing.T) {
	gen, _ := newTestGenerator(t, &fakeEngine{name: "primary", reply: "ok"})
	require.Zero(t, gen.WithAttemptTimeout(0).attemptTimeout)
	require.Equal(t, "ok", gen.Generate(t.Context(), "s1", nil, "hello", "neutral"))
}
