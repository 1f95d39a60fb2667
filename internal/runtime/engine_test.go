package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/dialogtree/internal/runtime"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/dsl"
	"github.com/aretw0/dialogtree/pkg/flows"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoGenerator returns the prompt as the utterance and can be told to fail.
type echoGenerator struct {
	prompts []string
	fail    error
}

func (g *echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.fail != nil {
		return "", g.fail
	}
	return prompt, nil
}

func newThermostat(t *testing.T, opts ...runtime.Option) (*runtime.Engine, *echoGenerator) {
	t.Helper()
	gen := &echoGenerator{}
	return runtime.NewEngine(flows.Thermostat(), nil, gen, opts...), gen
}

func respondAll(t *testing.T, e *runtime.Engine, inputs ...string) *runtime.Turn {
	t.Helper()
	var turn *runtime.Turn
	for _, in := range inputs {
		var err error
		turn, err = e.Respond(context.Background(), in)
		require.NoError(t, err, "input %q", in)
		require.False(t, turn.InvalidChoice, "input %q", in)
	}
	return turn
}

func TestEngine_Start(t *testing.T) {
	e, gen := newThermostat(t)

	turn, err := e.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, flows.NodeStart, turn.NodeID)
	assert.Equal(t, domain.StatusAwaitingInput, turn.Status)
	assert.Equal(t, []string{flows.NodeStart}, turn.Path)
	assert.Empty(t, e.Context())

	start := flows.Thermostat().Initial().(*domain.OptionNode)
	assert.Equal(t, start.Instruction, turn.Utterance)
	require.Len(t, turn.Options, 2)
	assert.Equal(t, "temp", turn.Options[0].Key)
	assert.Equal(t, start.Options[0].Prompt, turn.Options[0].Text)
	assert.Len(t, gen.prompts, 3)

	// Option wordings are displayed but not recorded.
	assert.Equal(t, 1, e.History().Len())
	assert.Equal(t, history.RoleSystem, e.History().Tail().Role())
}

func TestEngine_NotStarted(t *testing.T) {
	e, gen := newThermostat(t)

	turn, err := e.Respond(context.Background(), "temp")
	assert.Nil(t, turn)
	assert.ErrorIs(t, err, domain.ErrNotStarted)
	assert.Equal(t, 0, e.History().Len())
	assert.Empty(t, gen.prompts)
	assert.Equal(t, domain.StatusNotStarted, e.Status())
	assert.Nil(t, e.Current())
}

func TestEngine_Scenario(t *testing.T) {
	e, _ := newThermostat(t)
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)

	steps := []struct {
		input string
		node  string
	}{
		{"temp", flows.NodeAskCurrentTemp},
		{"22", flows.NodeAskDesiredTemp},
		{"24", flows.NodeAskTime},
		{"день", flows.NodeAskDuration},
		{"1.5", flows.NodeOfferTicket},
		{"yes", flows.NodeCreateTicket},
	}
	var turn *runtime.Turn
	for _, s := range steps {
		turn = respondAll(t, e, s.input)
		assert.Equal(t, s.node, turn.NodeID, "after %q", s.input)
	}

	assert.Equal(t, domain.StatusFinished, turn.Status)
	assert.Equal(t, domain.StatusFinished, e.Status())
	assert.Equal(t, "Заявка создана. Текущая температура: 22°C, желаемая: 24°C, время суток: день.", turn.Utterance)
	assert.Equal(t, map[string]string{
		flows.VarCurrentTemp: "22",
		flows.VarDesiredTemp: "24",
		flows.VarTimeOfDay:   "день",
		flows.VarDuration:    "1.5",
	}, e.Context())

	// One system message for start plus one user and one system message per step.
	assert.Equal(t, 1+2*len(steps), e.History().Len())
	assert.Len(t, e.History().Roots(), 1)
}

func TestEngine_DurationBranch(t *testing.T) {
	tests := []struct {
		duration string
		want     string
	}{
		{"1.5", flows.NodeOfferTicket},
		{"2", flows.NodeOfferTicket},
		{"1", flows.NodeWaitAdvice},
		{"0.5", flows.NodeWaitAdvice},
		{"soon", flows.NodeWaitAdvice},
		{"", flows.NodeWaitAdvice},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			e, _ := newThermostat(t)
			_, err := e.Start(context.Background())
			require.NoError(t, err)

			turn := respondAll(t, e, "temp", "22", "24", "утром", tt.duration)
			assert.Equal(t, tt.want, turn.NodeID)
			assert.Equal(t, []string{flows.NodeCheckDuration, tt.want}, turn.Path)
			assert.Equal(t, domain.StatusAwaitingInput, turn.Status)
		})
	}
}

func TestEngine_CaptureAlwaysAdvances(t *testing.T) {
	for _, input := range []string{"", "тепло", "   ", "-40"} {
		e, _ := newThermostat(t)
		_, err := e.Start(context.Background())
		require.NoError(t, err)

		turn := respondAll(t, e, "temp", input)
		assert.Equal(t, flows.NodeAskDesiredTemp, turn.NodeID)
		v, ok := domain.ContextFrom(e.Context()).Get(flows.VarCurrentTemp)
		assert.True(t, ok)
		assert.Equal(t, input, v)
	}
}

func TestEngine_InvalidChoice(t *testing.T) {
	var events []*domain.ChoiceEvent
	hooks := domain.LifecycleHooks{
		OnInvalidChoice: func(_ context.Context, ev *domain.ChoiceEvent) {
			events = append(events, ev)
		},
	}
	e, gen := newThermostat(t, runtime.WithLifecycleHooks(hooks), runtime.WithSessionID("s-1"))
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)

	before := e.History().Len()
	calls := len(gen.prompts)

	turn, err := e.Respond(ctx, "TEMP")
	require.NoError(t, err)
	assert.True(t, turn.InvalidChoice)
	assert.Equal(t, flows.NodeStart, turn.NodeID)
	assert.Equal(t, domain.StatusAwaitingInput, turn.Status)
	require.Len(t, turn.Options, 2)
	assert.NotEmpty(t, turn.Options[0].Text)

	assert.Equal(t, flows.NodeStart, e.Current().NodeID())
	assert.Empty(t, e.Context())
	assert.Equal(t, before+1, e.History().Len())
	assert.Equal(t, history.RoleUser, e.History().Tail().Role())
	assert.Equal(t, "TEMP", e.History().Tail().Content())
	assert.Equal(t, calls, len(gen.prompts), "no generation on invalid choice")

	require.Len(t, events, 1)
	assert.Equal(t, "TEMP", events[0].Input)
	assert.Equal(t, "s-1", events[0].SessionID)

	// The same node still accepts a valid key.
	turn = respondAll(t, e, "temp")
	assert.Equal(t, flows.NodeAskCurrentTemp, turn.NodeID)
}

func TestEngine_GeneratorFailure(t *testing.T) {
	e, gen := newThermostat(t)
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)
	respondAll(t, e, "temp")

	before := e.History().Len()
	gen.fail = errors.New("503 upstream")

	turn, err := e.Respond(ctx, "22")
	assert.Nil(t, turn)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrService)

	var svc *domain.ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, "generator", svc.Collaborator)
	assert.EqualError(t, svc.Err, "503 upstream")

	assert.Equal(t, flows.NodeAskCurrentTemp, e.Current().NodeID())
	assert.Empty(t, e.Context())
	assert.Equal(t, before+1, e.History().Len())
	assert.Equal(t, "22", e.History().Tail().Content())

	gen.fail = nil
	turn = respondAll(t, e, "22")
	assert.Equal(t, flows.NodeAskDesiredTemp, turn.NodeID)
}

func TestEngine_OptionRenderingFailureIsAtomic(t *testing.T) {
	calls := 0
	gen := ports.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		// 3 calls for start, 4 for the captures, then offer_ticket: utterance, "yes", "no".
		if calls == 9 {
			return "", errors.New("timeout")
		}
		return prompt, nil
	})
	e := runtime.NewEngine(flows.Thermostat(), nil, gen)
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)
	respondAll(t, e, "temp", "22", "24", "день")

	_, err = e.Respond(ctx, "3")
	require.ErrorIs(t, err, domain.ErrService)
	assert.Equal(t, flows.NodeAskDuration, e.Current().NodeID())
	_, ok := domain.ContextFrom(e.Context()).Get(flows.VarDuration)
	assert.False(t, ok)
}

func TestEngine_RetrieverFailure(t *testing.T) {
	retriever := ports.RetrieverFunc(func(context.Context, string, int) ([]domain.Snippet, error) {
		return nil, errors.New("index offline")
	})
	gen := &echoGenerator{}
	e := runtime.NewEngine(flows.Thermostat(), retriever, gen)

	_, err := e.Start(context.Background())
	var svc *domain.ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, "retriever", svc.Collaborator)
	assert.Empty(t, gen.prompts)
	assert.Equal(t, domain.StatusNotStarted, e.Status())
	assert.Equal(t, 0, e.History().Len())
}

func TestEngine_NoGenerator(t *testing.T) {
	e := runtime.NewEngine(flows.Thermostat(), nil, nil)
	_, err := e.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrService)
	assert.Equal(t, domain.StatusNotStarted, e.Status())
}

func TestEngine_PromptComposition(t *testing.T) {
	var queries []string
	var sizes []int
	retriever := ports.RetrieverFunc(func(_ context.Context, query string, n int) ([]domain.Snippet, error) {
		queries = append(queries, query)
		sizes = append(sizes, n)
		return []domain.Snippet{{Text: "Перезагрузка помогает.", Relevance: 0.8734}}, nil
	})
	gen := &echoGenerator{}
	e := runtime.NewEngine(flows.Thermostat(), retriever, gen)

	turn, err := e.Start(context.Background())
	require.NoError(t, err)

	start := flows.Thermostat().Initial().(*domain.OptionNode)
	want := "Контекстная информация о термостатах:\n" +
		"Перезагрузка помогает. (релевантность: 0.87)\n\n" +
		"На основе этой информации выполни следующую задачу: " + start.Instruction
	assert.Equal(t, want, turn.Utterance)
	assert.Equal(t, start.Instruction, queries[0])
	assert.Equal(t, start.Options[1].Prompt, queries[2])
	assert.Equal(t, []int{1, 1, 1}, sizes)
}

func TestEngine_TopK(t *testing.T) {
	var got int
	retriever := ports.RetrieverFunc(func(_ context.Context, _ string, n int) ([]domain.Snippet, error) {
		got = n
		return nil, nil
	})
	e := runtime.NewEngine(flows.Thermostat(), retriever, &echoGenerator{}, runtime.WithTopK(3))
	turn, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Contains(t, turn.Utterance, "Контекстная информация о термостатах:\n\n\n")
}

func TestEngine_FreeChatAfterFinish(t *testing.T) {
	var queries []string
	retriever := ports.RetrieverFunc(func(_ context.Context, query string, _ int) ([]domain.Snippet, error) {
		queries = append(queries, query)
		return nil, nil
	})
	gen := &echoGenerator{}
	e := runtime.NewEngine(flows.Thermostat(), retriever, gen)
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)

	turn := respondAll(t, e, "other")
	assert.Equal(t, flows.NodeEnd, turn.NodeID)
	assert.Equal(t, domain.StatusFinished, turn.Status)
	assert.Empty(t, turn.Options)

	before := e.History().Len()
	turn, err = e.Respond(ctx, "Как откалибровать термостат?")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, turn.Status)
	assert.Contains(t, turn.Utterance, "задачу: Как откалибровать термостат?")
	assert.Equal(t, "Как откалибровать термостат?", queries[len(queries)-1])
	assert.Equal(t, before+2, e.History().Len())
	assert.Equal(t, history.RoleSystem, e.History().Tail().Role())

	// Free chat never moves the graph.
	assert.Equal(t, flows.NodeEnd, e.Current().NodeID())
}

func TestEngine_FreeChatWithoutKnowledge(t *testing.T) {
	retriever := ports.RetrieverFunc(func(context.Context, string, int) ([]domain.Snippet, error) {
		return []domain.Snippet{{Text: "x", Relevance: 1}}, nil
	})
	gen := &echoGenerator{}
	e := runtime.NewEngine(flows.Thermostat(), retriever, gen, runtime.WithChatKnowledge(false))
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)
	respondAll(t, e, "other")

	turn, err := e.Respond(ctx, "привет")
	require.NoError(t, err)
	assert.Equal(t, "привет", turn.Utterance)
}

func TestEngine_FreeChatFailureKeepsUserMessage(t *testing.T) {
	e, gen := newThermostat(t)
	ctx := context.Background()
	_, err := e.Start(ctx)
	require.NoError(t, err)
	respondAll(t, e, "other")

	before := e.History().Len()
	gen.fail = errors.New("rate limited")
	_, err = e.Respond(ctx, "ещё вопрос")
	assert.ErrorIs(t, err, domain.ErrService)
	assert.Equal(t, before+1, e.History().Len())
	assert.Equal(t, domain.StatusFinished, e.Status())
}

func TestEngine_StartKeepsLoadedHistory(t *testing.T) {
	loaded := history.New()
	loaded.Append(history.RoleSystem, "старый диалог", false)
	loaded.Append(history.RoleUser, "ответ", false)

	e, _ := newThermostat(t, runtime.WithHistory(loaded))
	_, err := e.Start(context.Background())
	require.NoError(t, err)

	roots := e.History().Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "старый диалог", roots[0].Content())
	assert.Equal(t, 3, e.History().Len())

	// Restarting resets the walk and context and opens another branch.
	respondAll(t, e, "temp", "20")
	_, err = e.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, e.Context())
	assert.Equal(t, flows.NodeStart, e.Current().NodeID())
	assert.Len(t, e.History().Roots(), 3)
}

func TestEngine_SnapshotRestore(t *testing.T) {
	e, _ := newThermostat(t, runtime.WithSessionID("abc"))
	_, err := e.Start(context.Background())
	require.NoError(t, err)
	respondAll(t, e, "temp", "22")

	snap := e.Snapshot()
	assert.Equal(t, "abc", snap.SessionID)
	assert.Equal(t, flows.NodeAskDesiredTemp, snap.CurrentNodeID)
	assert.Equal(t, domain.StatusAwaitingInput, snap.Status)
	assert.Equal(t, map[string]string{flows.VarCurrentTemp: "22"}, snap.Context)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, snap.Branch)

	data, err := e.History().Serialize()
	require.NoError(t, err)
	tree, err := history.Deserialize(data)
	require.NoError(t, err)

	resumed, _ := newThermostat(t, runtime.WithHistory(tree))
	require.NoError(t, resumed.Restore(snap))
	assert.Equal(t, domain.StatusAwaitingInput, resumed.Status())
	assert.Equal(t, e.History().Tail().Content(), resumed.History().Tail().Content())

	turn := respondAll(t, resumed, "24", "вечером", "5")
	assert.Equal(t, flows.NodeOfferTicket, turn.NodeID)
	assert.Len(t, resumed.History().Roots(), 1, "turns continue the stored branch")
	assert.Equal(t, "22", resumed.Context()[flows.VarCurrentTemp])
	assert.Equal(t, "abc", resumed.Snapshot().SessionID)

	// Mutating the snapshot does not leak into the engine.
	snap.Context["x"] = "y"
	assert.NotContains(t, e.Context(), "x")
}

func TestEngine_RestoreOptionsWithoutText(t *testing.T) {
	e, _ := newThermostat(t)
	require.NoError(t, e.Restore(&domain.State{
		CurrentNodeID: flows.NodeOfferTicket,
		Status:        domain.StatusAwaitingInput,
		Context:       map[string]string{},
	}))

	turn, err := e.Respond(context.Background(), "maybe")
	require.NoError(t, err)
	assert.True(t, turn.InvalidChoice)
	require.Len(t, turn.Options, 2)
	assert.Equal(t, "yes", turn.Options[0].Key)
	assert.Empty(t, turn.Options[0].Text)
}

func TestEngine_RestoreErrors(t *testing.T) {
	tests := []struct {
		name  string
		state *domain.State
	}{
		{"nil", nil},
		{"unknown status", &domain.State{Status: "paused"}},
		{"missing node", &domain.State{Status: domain.StatusAwaitingInput, CurrentNodeID: "ghost"}},
		{"branch node", &domain.State{Status: domain.StatusAwaitingInput, CurrentNodeID: flows.NodeCheckDuration}},
		{"terminal node", &domain.State{Status: domain.StatusAwaitingInput, CurrentNodeID: flows.NodeEnd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newThermostat(t)
			assert.Error(t, e.Restore(tt.state))
			assert.Equal(t, domain.StatusNotStarted, e.Status())
		})
	}

	e, _ := newThermostat(t)
	err := e.Restore(&domain.State{Status: domain.StatusAwaitingInput, CurrentNodeID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestEngine_TerminalEntry(t *testing.T) {
	b := dsl.New()
	b.Add("start").Say("Готово.")
	g := b.MustBuild()

	e := runtime.NewEngine(g, nil, &echoGenerator{})
	turn, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, turn.Status)

	turn, err = e.Respond(context.Background(), "ещё")
	require.NoError(t, err)
	assert.Equal(t, "ещё", turn.Utterance)
}

func TestEngine_BranchEntry(t *testing.T) {
	b := dsl.New()
	b.Add("start").Branch("duration", 1, "high", "low")
	b.Add("high").Say("много")
	b.Add("low").Say("мало")
	g := b.MustBuild()

	e := runtime.NewEngine(g, nil, &echoGenerator{})
	turn, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "low", turn.NodeID)
	assert.Equal(t, []string{"start", "low"}, turn.Path)
}

func TestEngine_BranchLoop(t *testing.T) {
	b := dsl.New()
	b.Add("start").Branch("v", 1, "other", "other")
	b.Add("other").Branch("v", 1, "start", "start")
	g := b.MustBuild()

	e := runtime.NewEngine(g, nil, &echoGenerator{})
	_, err := e.Start(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.StatusNotStarted, e.Status())
}

func TestComposeTicket(t *testing.T) {
	vars := domain.NewContext()
	vars.Set(flows.VarCurrentTemp, "19")
	assert.Equal(t,
		"Заявка создана. Текущая температура: 19°C, желаемая: неизвестно°C, время суток: неизвестно.",
		runtime.ComposeTicket(vars))
}
