// Package play is the terminal front end of a quiz session.
package play

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/victornm/quizmaster/internal/client"
	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/score"
	"github.com/victornm/quizmaster/internal/session"
)

// Categories offered to the player.
var Categories = domain.Categories

type Backend interface {
	session.Source
	SubmitScore(ctx context.Context, req client.SubmitScoreRequest) (*domain.LeaderboardEntry, error)
	Top(ctx context.Context, category string) ([]domain.LeaderboardEntry, error)
}

type Config struct {
	Backend Backend
	In      io.Reader
	Out     io.Writer

	TimeLimit     int
	Difficulty    string
	NewTickerFunc func(d time.Duration) session.Ticker
}

type Player struct {
	backend Backend
	out     io.Writer
	lines   <-chan string
	ended   chan domain.Result
	m       *session.Machine
}

func New(c Config) *Player {
	p := &Player{
		backend: c.Backend,
		out:     c.Out,
		lines:   readLines(c.In),
		ended:   make(chan domain.Result, 1),
	}
	p.m = session.New(session.Config{
		Source:        c.Backend,
		TimeLimit:     c.TimeLimit,
		Difficulty:    c.Difficulty,
		NewTickerFunc: c.NewTickerFunc,
		OnEnd: func(r domain.Result) {
			select {
			case p.ended <- r:
			default:
			}
		},
	})
	return p
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- strings.TrimSpace(sc.Text())
		}
	}()
	return ch
}

// Run plays sessions until the player quits or the input ends.
func (p *Player) Run(ctx context.Context) error {
	defer p.m.Leave()

	for {
		category, ok := p.chooseCategory(ctx)
		if !ok {
			return nil
		}

		p.drainEnded()
		if err := p.m.Start(ctx, category); err != nil {
			p.printf("Failed to load questions: %v\n", err)
			continue
		}

		for {
			r, ok := p.play(ctx)
			if !ok {
				return nil
			}
			if r == nil {
				break
			}

			next, ok := p.summary(ctx, *r)
			if !ok {
				return nil
			}
			if next != "r" {
				p.m.Leave()
				break
			}
			p.drainEnded()
			if err := p.m.Restart(ctx); err != nil {
				p.printf("Failed to load questions: %v\n", err)
				p.m.Leave()
				break
			}
		}
	}
}

// drainEnded drops a result left behind by a session the player walked away from.
func (p *Player) drainEnded() {
	select {
	case <-p.ended:
	default:
	}
}

func (p *Player) chooseCategory(ctx context.Context) (string, bool) {
	for {
		p.printf("\nChoose a category:\n")
		for i, c := range Categories {
			p.printf("  %d. %s\n", i+1, c)
		}
		p.printf("  q. Quit\n> ")

		line, ok := p.readLine(ctx)
		if !ok || line == "q" {
			return "", false
		}

		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(Categories) {
			return Categories[n-1], true
		}
		if c, ok := domain.KnownCategory(line); ok {
			return c, true
		}
		p.printf("Unknown category %q\n", line)
	}
}

// play runs the in-progress phase. It returns the result when the session
// ends, nil when the player leaves, and false when input is exhausted.
func (p *Player) play(ctx context.Context) (*domain.Result, bool) {
	for {
		st := p.m.Snapshot()
		if st.Phase != session.PhaseInProgress {
			select {
			case r := <-p.ended:
				return &r, true
			default:
				return nil, true
			}
		}
		p.render(st)

		var line string
		select {
		case r := <-p.ended:
			p.printf("\nTime is up!\n")
			return &r, true
		case <-ctx.Done():
			return nil, false
		case l, ok := <-p.lines:
			if !ok {
				return nil, false
			}
			line = l
		}

		switch strings.ToLower(line) {
		case "n":
			_ = p.m.GoNext()
		case "p":
			_ = p.m.GoPrevious()
		case "e":
			_ = p.m.End()
		case "q":
			p.m.Leave()
			return nil, true
		default:
			p.answer(st, line)
		}
	}
}

func (p *Player) answer(st session.State, line string) {
	sel, err := ParseSelection(line)
	if err != nil {
		p.printf("%v\n", err)
		return
	}
	for s := range sel {
		if !st.Question.Offered(s) {
			p.printf("There is no answer %s\n", s)
			return
		}
	}

	correct, err := p.m.SubmitAnswer(sel)
	if err != nil {
		// The countdown ended the session first.
		return
	}
	if correct {
		p.printf("Correct!\n")
		return
	}

	var want []string
	for _, v := range score.Verdicts(*st.Question, sel) {
		if v.Expected {
			want = append(want, v.Slot.String())
		}
	}
	p.printf("Wrong. Correct answer: %s\n", strings.Join(want, ", "))
}

func (p *Player) render(st session.State) {
	q := st.Question
	p.printf("\n[%s] Question %d/%d  Score %d  Time left %s\n", st.Category, st.Index+1, st.Total, st.Score, FormatSeconds(st.Remaining))
	p.printf("%s\n", q.Prompt)
	if q.MultipleCorrect {
		p.printf("(select all that apply)\n")
	}
	for _, s := range q.OfferedSlots() {
		p.printf("  %s) %s\n", s, *q.Answers[s])
	}
	p.printf("Answer (e.g. a or a,c), n next, p previous, e end, q leave\n> ")
}

// summary shows the result, offers to save it and returns the next menu choice.
func (p *Player) summary(ctx context.Context, r domain.Result) (string, bool) {
	p.printf("\nQuiz complete!\n")
	p.printf("Score: %d/%d (%d%%) %s\n", r.Score, r.Total, r.Percentage(), r.Grade())
	p.printf("Time: %s\n", FormatSeconds(r.TimeTaken))

	p.printf("Enter your name to save your score (blank to skip)\n> ")
	name, ok := p.readLine(ctx)
	if !ok {
		return "", false
	}
	if name != "" {
		if _, err := p.backend.SubmitScore(ctx, client.SubmitScoreRequest{
			Name:      name,
			Score:     r.Score,
			Category:  r.Category,
			TimeTaken: r.TimeTaken,
		}); err != nil {
			p.printf("Failed to save score: %v\n", err)
		} else {
			p.printf("Score saved.\n")
		}
	}

	p.showLeaderboard(ctx, r.Category)

	for {
		p.printf("r restart, m menu, q quit\n> ")
		line, ok := p.readLine(ctx)
		if !ok || line == "q" {
			return "", false
		}
		if line == "r" || line == "m" {
			return line, true
		}
	}
}

func (p *Player) showLeaderboard(ctx context.Context, category string) {
	entries, err := p.backend.Top(ctx, category)
	if err != nil {
		p.printf("Failed to load leaderboard: %v\n", err)
		return
	}

	p.printf("\nLeaderboard: %s\n", category)
	if len(entries) == 0 {
		p.printf("  No scores yet.\n")
		return
	}
	for i, e := range entries {
		p.printf("  %2d. %-20s %3d  %s  %s\n", i+1, e.Name, e.Score, FormatSeconds(e.TimeTaken), e.Date.Local().Format(time.DateOnly))
	}
}

func (p *Player) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case l, ok := <-p.lines:
		return l, ok
	}
}

func (p *Player) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// ParseSelection reads slots separated by commas or spaces, e.g. "a,c".
func ParseSelection(s string) (domain.Selection, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("no answer given")
	}

	sel := make(domain.Selection, len(fields))
	for _, f := range fields {
		slot, err := domain.ParseSlot(f)
		if err != nil {
			return nil, err
		}
		sel[slot] = true
	}
	return sel, nil
}

// FormatSeconds renders a duration as "2m 5s".
func FormatSeconds(sec int) string {
	return fmt.Sprintf("%dm %ds", sec/60, sec%60)
}
