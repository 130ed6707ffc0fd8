package domain

import (
	"fmt"
	"strings"
	"time"
)

// Categories is the fixed set of quiz categories. The provider is queried with
// the lower-cased name.
var Categories = []string{"Linux", "DevOps", "Docker", "SQL", "CMS", "Code"}

// KnownCategory returns the canonical spelling of c, matched case-insensitively.
func KnownCategory(c string) (string, bool) {
	for _, k := range Categories {
		if strings.EqualFold(k, c) {
			return k, true
		}
	}
	return "", false
}

// Slot is one lettered answer position on a question, a through f.
type Slot int

const (
	SlotA Slot = iota
	SlotB
	SlotC
	SlotD
	SlotE
	SlotF

	SlotCount = 6
)

// Slots lists every slot in letter order.
var Slots = [SlotCount]Slot{SlotA, SlotB, SlotC, SlotD, SlotE, SlotF}

func (s Slot) String() string {
	if s < 0 || s >= SlotCount {
		return fmt.Sprintf("Slot(%d)", int(s))
	}
	return string(rune('a' + s))
}

// ParseSlot accepts a bare letter ("a") or the provider key form ("answer_a").
func ParseSlot(s string) (Slot, error) {
	k := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "answer_")
	if len(k) != 1 || k[0] < 'a' || k[0] >= 'a'+SlotCount {
		return 0, fmt.Errorf("invalid answer slot %q", s)
	}
	return Slot(k[0] - 'a'), nil
}

// Flag is the correctness of a slot. The zero value means the source did not
// provide a flag for the slot.
type Flag int8

const (
	FlagAbsent Flag = iota
	FlagFalse
	FlagTrue
)

func (f Flag) Present() bool { return f != FlagAbsent }

func (f Flag) String() string {
	switch f {
	case FlagFalse:
		return "false"
	case FlagTrue:
		return "true"
	default:
		return "absent"
	}
}

// Question is a multiple-choice or multiple-select question.
type Question struct {
	ID          int
	Prompt      string
	Description string
	// Answers holds the label per slot, nil when the slot is not offered.
	Answers [SlotCount]*string
	Correct [SlotCount]Flag
	// MultipleCorrect only affects how the question is presented.
	MultipleCorrect bool
	Category        string
	Difficulty      string
}

// Offered reports whether slot s carries an answer label.
func (q Question) Offered(s Slot) bool {
	return s >= 0 && s < SlotCount && q.Answers[s] != nil
}

// OfferedSlots returns the slots with an answer label in letter order.
func (q Question) OfferedSlots() []Slot {
	out := make([]Slot, 0, SlotCount)
	for _, s := range Slots {
		if q.Offered(s) {
			out = append(out, s)
		}
	}
	return out
}

// Selection maps a slot to the player's choice. Missing slots are unselected.
type Selection map[Slot]bool

// QuestionQuery selects a batch of questions from a quiz source.
type QuestionQuery struct {
	Category   string
	Limit      int
	Difficulty string
}

// LeaderboardEntry is one persisted result of a completed session.
type LeaderboardEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Category  string    `json:"category"`
	TimeTaken int       `json:"timeTaken"`
	Date      time.Time `json:"date"`
}

// Leaderboard is the top list of a category, sorted by score descending and
// then by date ascending.
type Leaderboard struct {
	Category string
	Entries  []LeaderboardEntry
}
