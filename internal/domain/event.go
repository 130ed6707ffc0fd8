package domain

const (
	EventNameEntryCreated       = "leaderboard.entry_created"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventEntryCreated struct {
	Entry LeaderboardEntry
}

func (EventEntryCreated) Name() string { return EventNameEntryCreated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
