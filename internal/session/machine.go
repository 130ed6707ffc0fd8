// Package session holds the state machine of one player's quiz attempt.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/score"
)

const (
	DefaultTimeLimit     = 120
	DefaultQuestionLimit = 10
)

var (
	ErrInvalidTransition = stderrors.New("session: invalid transition")
	ErrNoQuestions       = stderrors.New("session: no questions for category")
)

// Phase is the lifecycle stage of a session.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseInProgress:
		return "in_progress"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Source fetches the questions a session is seeded with.
type Source interface {
	FetchQuestions(ctx context.Context, q domain.QuestionQuery) ([]domain.Question, error)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Config struct {
	Source Source
	// TimeLimit is in seconds. Defaults to DefaultTimeLimit.
	TimeLimit int
	// QuestionLimit caps the fetched batch. Defaults to DefaultQuestionLimit.
	QuestionLimit int
	// Difficulty is passed through to the source; empty lets the source decide.
	Difficulty string
	// NewTickerFunc drives the countdown. Defaults to a time.Ticker.
	NewTickerFunc func(d time.Duration) Ticker
	// OnEnd is called once for every transition into PhaseEnded, without any
	// lock held.
	OnEnd func(domain.Result)
}

// State is a copy of the observable state of a session.
type State struct {
	Phase     Phase
	Category  string
	Index     int
	Total     int
	Score     int
	Remaining int
	TimeLimit int
	TimeTaken int
	Question  *domain.Question
}

// Machine is a quiz session. It is safe for concurrent use; countdown ticks
// and player actions are serialised by an internal lock.
type Machine struct {
	source        Source
	timeLimit     int
	questionLimit int
	difficulty    string
	newTicker     func(d time.Duration) Ticker
	onEnd         func(domain.Result)

	mu        sync.Mutex
	phase     Phase
	category  string
	questions []domain.Question
	index     int
	score     int
	remaining int
	timeTaken int
	stopTimer context.CancelFunc
	timerGen  uint64
}

func New(c Config) *Machine {
	m := &Machine{
		source:        c.Source,
		timeLimit:     c.TimeLimit,
		questionLimit: c.QuestionLimit,
		difficulty:    c.Difficulty,
		newTicker:     c.NewTickerFunc,
		onEnd:         c.OnEnd,
	}
	if m.timeLimit <= 0 {
		m.timeLimit = DefaultTimeLimit
	}
	if m.questionLimit <= 0 {
		m.questionLimit = DefaultQuestionLimit
	}
	if m.newTicker == nil {
		m.newTicker = newTimeTicker
	}
	m.remaining = m.timeLimit
	return m
}

// Start fetches questions for category and begins the countdown. It is valid
// from PhaseNotStarted and PhaseEnded. When the fetch fails the session keeps
// its previous phase.
func (m *Machine) Start(ctx context.Context, category string) error {
	m.mu.Lock()
	if m.phase == PhaseInProgress {
		err := m.invalid("start")
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	qs, err := m.source.FetchQuestions(ctx, domain.QuestionQuery{
		Category:   strings.ToLower(category),
		Limit:      m.questionLimit,
		Difficulty: m.difficulty,
	})
	if err != nil {
		return fmt.Errorf("session: fetch questions: %w", err)
	}
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	if len(qs) > m.questionLimit {
		qs = qs[:m.questionLimit]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another Start may have won while the fetch was in flight.
	if m.phase == PhaseInProgress {
		return m.invalid("start")
	}

	m.category = category
	m.questions = qs
	m.index = 0
	m.score = 0
	m.remaining = m.timeLimit
	m.timeTaken = 0
	m.phase = PhaseInProgress
	m.startTimerLocked()
	return nil
}

// Restart starts a new attempt in the category of the ended session.
func (m *Machine) Restart(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseEnded {
		err := m.invalid("restart")
		m.mu.Unlock()
		return err
	}
	category := m.category
	m.mu.Unlock()

	return m.Start(ctx, category)
}

// Tick advances the countdown by one second. Outside PhaseInProgress it does
// nothing. Reaching zero ends the session with the full time limit taken.
func (m *Machine) Tick() {
	m.mu.Lock()
	m.tickAndUnlock()
}

// tick is a countdown tick from the timer started as generation gen.
func (m *Machine) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	m.tickAndUnlock()
}

// tickAndUnlock must be called with the lock held and releases it.
func (m *Machine) tickAndUnlock() {
	if m.phase != PhaseInProgress {
		m.mu.Unlock()
		return
	}

	m.remaining = max(m.remaining-1, 0)
	if m.remaining > 0 {
		m.mu.Unlock()
		return
	}

	r := m.endLocked()
	m.mu.Unlock()
	m.notifyEnd(r)
}

// SubmitAnswer scores sel against the current question and advances. On the
// last question the session ends. It reports whether the answer was correct.
func (m *Machine) SubmitAnswer(sel domain.Selection) (bool, error) {
	m.mu.Lock()
	if m.phase != PhaseInProgress {
		err := m.invalid("submit answer")
		m.mu.Unlock()
		return false, err
	}

	correct := score.Judge(m.questions[m.index], sel)
	if correct {
		m.score++
	}

	if m.index < len(m.questions)-1 {
		m.index++
		m.mu.Unlock()
		return correct, nil
	}

	r := m.endLocked()
	m.mu.Unlock()
	m.notifyEnd(r)
	return correct, nil
}

// GoNext moves to the next question without answering the current one.
func (m *Machine) GoNext() error {
	return m.move(1)
}

// GoPrevious moves back one question.
func (m *Machine) GoPrevious() error {
	return m.move(-1)
}

func (m *Machine) move(delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInProgress {
		return m.invalid("navigate")
	}
	m.index = min(max(m.index+delta, 0), len(m.questions)-1)
	return nil
}

// End terminates an in-progress session immediately.
func (m *Machine) End() error {
	m.mu.Lock()
	if m.phase != PhaseInProgress {
		err := m.invalid("end")
		m.mu.Unlock()
		return err
	}

	r := m.endLocked()
	m.mu.Unlock()
	m.notifyEnd(r)
	return nil
}

// Leave abandons the session from any phase and resets it.
func (m *Machine) Leave() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.phase = PhaseNotStarted
	m.category = ""
	m.questions = nil
	m.index = 0
	m.score = 0
	m.remaining = m.timeLimit
	m.timeTaken = 0
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Phase:     m.phase,
		Category:  m.category,
		Index:     m.index,
		Total:     len(m.questions),
		Score:     m.score,
		Remaining: m.remaining,
		TimeLimit: m.timeLimit,
		TimeTaken: m.timeTaken,
	}
	if m.phase == PhaseInProgress {
		q := m.questions[m.index]
		s.Question = &q
	}
	return s
}

// Result returns the outcome of an ended session.
func (m *Machine) Result() (domain.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseEnded {
		return domain.Result{}, false
	}
	return m.resultLocked(), true
}

func (m *Machine) endLocked() domain.Result {
	m.stopTimerLocked()
	m.phase = PhaseEnded
	m.timeTaken = m.timeLimit - m.remaining
	return m.resultLocked()
}

func (m *Machine) resultLocked() domain.Result {
	return domain.Result{
		Score:     m.score,
		Total:     len(m.questions),
		Category:  m.category,
		TimeTaken: m.timeTaken,
	}
}

func (m *Machine) notifyEnd(r domain.Result) {
	if m.onEnd != nil {
		m.onEnd(r)
	}
}

func (m *Machine) invalid(op string) error {
	return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, op, m.phase)
}
