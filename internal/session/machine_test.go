package session_test

import (
	"context"
	stderrors "errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/session"
)

func TestMachine_Start(t *testing.T) {
	type outputs struct {
		err     error
		state   session.State
		queries []domain.QuestionQuery
	}

	tests := map[string]struct {
		arrange func(t *testing.T, src *fakeSource, m *session.Machine)
		assert  func(t *testing.T, out outputs)
	}{
		"should seed questions and begin the countdown": {
			arrange: func(t *testing.T, src *fakeSource, m *session.Machine) {
				src.questions = questions(3)
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, session.PhaseInProgress, out.state.Phase)
				assert.Equal(t, "SQL", out.state.Category)
				assert.Equal(t, 0, out.state.Index)
				assert.Equal(t, 3, out.state.Total)
				assert.Equal(t, 0, out.state.Score)
				assert.Equal(t, session.DefaultTimeLimit, out.state.Remaining)
				require.NotNil(t, out.state.Question)
				assert.Equal(t, 1, out.state.Question.ID)
				assert.Equal(t, []domain.QuestionQuery{{Category: "sql", Limit: 10}}, out.queries)
			},
		},

		"should cap the batch at the question limit": {
			arrange: func(t *testing.T, src *fakeSource, m *session.Machine) {
				src.questions = questions(12)
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, 10, out.state.Total)
			},
		},

		"should stay not started when the fetch fails": {
			arrange: func(t *testing.T, src *fakeSource, m *session.Machine) {
				src.err = stderrors.New("upstream down")
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.Equal(t, session.PhaseNotStarted, out.state.Phase)
				assert.Equal(t, 0, out.state.Total)
				assert.Equal(t, session.DefaultTimeLimit, out.state.Remaining)
			},
		},

		"should reject an empty batch": {
			arrange: func(t *testing.T, src *fakeSource, m *session.Machine) {},
			assert: func(t *testing.T, out outputs) {
				require.ErrorIs(t, out.err, session.ErrNoQuestions)
				assert.Equal(t, session.PhaseNotStarted, out.state.Phase)
			},
		},

		"should reject start while in progress": {
			arrange: func(t *testing.T, src *fakeSource, m *session.Machine) {
				src.questions = questions(2)
				require.NoError(t, m.Start(context.Background(), "Linux"))
				src.queries = nil
			},
			assert: func(t *testing.T, out outputs) {
				require.ErrorIs(t, out.err, session.ErrInvalidTransition)
				assert.Equal(t, "Linux", out.state.Category)
				assert.Empty(t, out.queries, "should not fetch again")
			},
		},

		"should stay ended when a restart fetch fails": {
			arrange: func(t *testing.T, src *fakeSource, m *session.Machine) {
				src.questions = questions(1)
				require.NoError(t, m.Start(context.Background(), "SQL"))
				_, err := m.SubmitAnswer(nil)
				require.NoError(t, err)
				src.err = stderrors.New("upstream down")
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.Equal(t, session.PhaseEnded, out.state.Phase)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{}
			m := makeMachine(t, src)
			tt.arrange(t, src, m)

			err := m.Start(context.Background(), "SQL")

			tt.assert(t, outputs{err: err, state: m.Snapshot(), queries: src.queries})
		})
	}
}

func TestMachine_Tick(t *testing.T) {
	t.Run("reaching zero ends the session with the full limit taken", func(t *testing.T) {
		m := startedMachine(t, 5)
		require.NoError(t, m.GoNext())

		for range session.DefaultTimeLimit {
			m.Tick()
		}

		s := m.Snapshot()
		assert.Equal(t, session.PhaseEnded, s.Phase)
		assert.Equal(t, 0, s.Remaining)
		assert.Equal(t, session.DefaultTimeLimit, s.TimeTaken)

		r, ok := m.Result()
		require.True(t, ok)
		assert.Equal(t, domain.Result{Score: 0, Total: 5, Category: "SQL", TimeTaken: session.DefaultTimeLimit}, r)
	})

	t.Run("ticks outside in progress do nothing", func(t *testing.T) {
		m := makeMachine(t, &fakeSource{})
		m.Tick()
		assert.Equal(t, session.DefaultTimeLimit, m.Snapshot().Remaining)
		assert.Equal(t, session.PhaseNotStarted, m.Snapshot().Phase)

		m = startedMachine(t, 2)
		require.NoError(t, m.End())
		taken := m.Snapshot().TimeTaken
		m.Tick()
		assert.Equal(t, taken, m.Snapshot().TimeTaken)
		assert.Equal(t, session.DefaultTimeLimit, m.Snapshot().Remaining)
	})
}

func TestMachine_SubmitAnswer(t *testing.T) {
	t.Run("correct answer scores and advances", func(t *testing.T) {
		m := startedMachine(t, 3)

		correct, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
		require.NoError(t, err)
		assert.True(t, correct)

		s := m.Snapshot()
		assert.Equal(t, 1, s.Score)
		assert.Equal(t, 1, s.Index)
		assert.Equal(t, session.PhaseInProgress, s.Phase)
	})

	t.Run("wrong answer advances without scoring", func(t *testing.T) {
		m := startedMachine(t, 3)

		correct, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true, domain.SlotB: true})
		require.NoError(t, err)
		assert.False(t, correct)
		assert.Equal(t, 0, m.Snapshot().Score)
		assert.Equal(t, 1, m.Snapshot().Index)
	})

	t.Run("re-answering after going back scores again", func(t *testing.T) {
		m := startedMachine(t, 3)

		_, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
		require.NoError(t, err)
		require.NoError(t, m.GoPrevious())
		correct, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
		require.NoError(t, err)
		assert.True(t, correct)

		s := m.Snapshot()
		assert.Equal(t, 2, s.Score, "each correct submission counts, even for the same question")
		assert.Equal(t, 1, s.Index)
	})

	t.Run("answering the last question ends the session", func(t *testing.T) {
		var ended []domain.Result
		m := makeMachine(t, &fakeSource{questions: questions(2)}, withOnEnd(func(r domain.Result) {
			ended = append(ended, r)
		}))
		require.NoError(t, m.Start(context.Background(), "SQL"))

		for range 7 {
			m.Tick()
		}
		_, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
		require.NoError(t, err)
		_, err = m.SubmitAnswer(domain.Selection{domain.SlotA: true})
		require.NoError(t, err)

		s := m.Snapshot()
		assert.Equal(t, session.PhaseEnded, s.Phase)
		assert.Equal(t, 7, s.TimeTaken)
		assert.Nil(t, s.Question)
		assert.Equal(t, []domain.Result{{Score: 2, Total: 2, Category: "SQL", TimeTaken: 7}}, ended)
	})

	t.Run("submit outside in progress is rejected", func(t *testing.T) {
		m := makeMachine(t, &fakeSource{})
		_, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
		require.ErrorIs(t, err, session.ErrInvalidTransition)
	})
}

func TestMachine_Navigate(t *testing.T) {
	m := startedMachine(t, 3)

	require.NoError(t, m.GoPrevious())
	assert.Equal(t, 0, m.Snapshot().Index, "should clamp at the first question")

	require.NoError(t, m.GoNext())
	require.NoError(t, m.GoNext())
	require.NoError(t, m.GoNext())
	s := m.Snapshot()
	assert.Equal(t, 2, s.Index, "should clamp at the last question")
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, session.PhaseInProgress, s.Phase)
	assert.Equal(t, 3, s.Question.ID)

	require.NoError(t, m.GoPrevious())
	assert.Equal(t, 1, m.Snapshot().Index)

	require.NoError(t, m.End())
	require.ErrorIs(t, m.GoNext(), session.ErrInvalidTransition)
	require.ErrorIs(t, m.GoPrevious(), session.ErrInvalidTransition)
}

func TestMachine_End(t *testing.T) {
	m := startedMachine(t, 3)
	for range 30 {
		m.Tick()
	}

	require.NoError(t, m.End())

	s := m.Snapshot()
	assert.Equal(t, session.PhaseEnded, s.Phase)
	assert.Equal(t, 30, s.TimeTaken)
	require.ErrorIs(t, m.End(), session.ErrInvalidTransition)
}

func TestMachine_Leave(t *testing.T) {
	want := session.State{
		Phase:     session.PhaseNotStarted,
		Remaining: session.DefaultTimeLimit,
		TimeLimit: session.DefaultTimeLimit,
	}

	tests := map[string]func(t *testing.T) *session.Machine{
		"from not started": func(t *testing.T) *session.Machine {
			return makeMachine(t, &fakeSource{})
		},
		"from in progress": func(t *testing.T) *session.Machine {
			m := startedMachine(t, 3)
			_, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
			require.NoError(t, err)
			m.Tick()
			return m
		},
		"from ended": func(t *testing.T) *session.Machine {
			m := startedMachine(t, 1)
			m.Tick()
			_, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
			require.NoError(t, err)
			return m
		},
	}

	for name, arrange := range tests {
		t.Run(name, func(t *testing.T) {
			m := arrange(t)
			m.Leave()
			assert.Equal(t, want, m.Snapshot())

			_, ok := m.Result()
			assert.False(t, ok)
		})
	}
}

func TestMachine_Restart(t *testing.T) {
	src := &fakeSource{questions: questions(2)}
	m := makeMachine(t, src)

	require.ErrorIs(t, m.Restart(context.Background()), session.ErrInvalidTransition)

	require.NoError(t, m.Start(context.Background(), "Docker"))
	_, err := m.SubmitAnswer(domain.Selection{domain.SlotA: true})
	require.NoError(t, err)
	require.NoError(t, m.End())

	require.NoError(t, m.Restart(context.Background()))

	s := m.Snapshot()
	assert.Equal(t, session.PhaseInProgress, s.Phase)
	assert.Equal(t, "Docker", s.Category)
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, 0, s.Index)
	assert.Equal(t, 0, s.TimeTaken)
	assert.Equal(t, "docker", src.queries[len(src.queries)-1].Category)
}

func TestMachine_Timer(t *testing.T) {
	tickers := make(chan *manualTicker, 4)
	m := session.New(session.Config{
		Source:    &fakeSource{questions: questions(2)},
		TimeLimit: 2,
		NewTickerFunc: func(time.Duration) session.Ticker {
			mt := newManualTicker()
			tickers <- mt
			return mt
		},
	})

	require.NoError(t, m.Start(context.Background(), "Code"))
	tk := <-tickers

	tk.fire()
	require.Eventually(t, func() bool { return m.Snapshot().Remaining == 1 }, time.Second, time.Millisecond)

	tk.fire()
	require.Eventually(t, func() bool { return m.Snapshot().Phase == session.PhaseEnded }, time.Second, time.Millisecond)
	assert.Equal(t, 2, m.Snapshot().TimeTaken)

	select {
	case <-tk.stopped:
	case <-time.After(time.Second):
		t.Fatal("ticker should be stopped once the session ends")
	}

	// A second attempt gets a fresh timer; leaving stops it.
	require.NoError(t, m.Restart(context.Background()))
	tk2 := <-tickers
	m.Leave()

	select {
	case <-tk2.stopped:
	case <-time.After(time.Second):
		t.Fatal("ticker should be stopped on leave")
	}
	assert.Equal(t, 2, m.Snapshot().Remaining)
}

func TestMachine_Invariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	src := &fakeSource{questions: questions(4)}
	m := makeMachine(t, src)

	for i := range 2000 {
		switch r.Intn(8) {
		case 0:
			_ = m.Start(context.Background(), "Linux")
		case 1, 2:
			m.Tick()
		case 3:
			_, _ = m.SubmitAnswer(domain.Selection{domain.SlotA: r.Intn(2) == 0})
		case 4:
			_ = m.GoNext()
		case 5:
			_ = m.GoPrevious()
		case 6:
			if r.Intn(10) == 0 {
				m.Leave()
			}
		case 7:
			if r.Intn(10) == 0 {
				_ = m.End()
			}
		}

		s := m.Snapshot()
		require.True(t, s.Index >= 0 && s.Index <= s.Total, "step %d: index %d of %d", i, s.Index, s.Total)
		require.True(t, s.Remaining >= 0 && s.Remaining <= s.TimeLimit, "step %d: remaining %d", i, s.Remaining)
	}
}

func makeMachine(t *testing.T, src *fakeSource, opts ...option) *session.Machine {
	c := session.Config{
		Source: src,
		NewTickerFunc: func(time.Duration) session.Ticker {
			return newManualTicker()
		},
	}

	for _, opt := range opts {
		opt(&c)
	}

	m := session.New(c)
	t.Cleanup(m.Leave)
	return m
}

func startedMachine(t *testing.T, n int) *session.Machine {
	m := makeMachine(t, &fakeSource{questions: questions(n)})
	require.NoError(t, m.Start(context.Background(), "SQL"))
	return m
}

type option func(c *session.Config)

func withOnEnd(f func(domain.Result)) option {
	return func(c *session.Config) {
		c.OnEnd = f
	}
}

type fakeSource struct {
	questions []domain.Question
	err       error
	queries   []domain.QuestionQuery
}

func (s *fakeSource) FetchQuestions(_ context.Context, q domain.QuestionQuery) ([]domain.Question, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

// questions builds n questions whose only correct answer is slot a.
func questions(n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := range n {
		a, b := "right", "wrong"
		q := domain.Question{ID: i + 1, Prompt: "pick a", Category: "SQL", Difficulty: "easy"}
		q.Answers[domain.SlotA], q.Correct[domain.SlotA] = &a, domain.FlagTrue
		q.Answers[domain.SlotB], q.Correct[domain.SlotB] = &b, domain.FlagFalse
		qs = append(qs, q)
	}
	return qs
}

type manualTicker struct {
	c       chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() { t.once.Do(func() { close(t.stopped) }) }

func (t *manualTicker) fire() { t.c <- time.Now() }
