package scoring

import (
	"sort"
	"sync"
	"time"
)

// Event is one append-only point grant. Team totals are always a reduction
// over events, never a mutated counter, so replays and corrections stay
// auditable.
type Event struct {
	LobbyID string    `json:"lobbyId"`
	Team    string    `json:"team"`
	Round   int       `json:"round"`
	Points  int       `json:"points"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

type TeamTotal struct {
	Team   string `json:"team"`
	Points int    `json:"points"`
}

func NewLedger() *Ledger {
	return &Ledger{events: map[string][]Event{}}
}

type Ledger struct {
	mtx    sync.RWMutex
	events map[string][]Event
}

func (l *Ledger) Add(lobbyID, team string, round, points int, reason string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.events[lobbyID] = append(l.events[lobbyID], Event{
		LobbyID: lobbyID,
		Team:    team,
		Round:   round,
		Points:  points,
		Reason:  reason,
		At:      time.Now(),
	})
}

func (l *Ledger) Events(lobbyID string) []Event {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	out := make([]Event, len(l.events[lobbyID]))
	copy(out, l.events[lobbyID])
	return out
}

func (l *Ledger) Totals(lobbyID string) map[string]int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	totals := map[string]int{}
	for _, ev := range l.events[lobbyID] {
		totals[ev.Team] += ev.Points
	}
	return totals
}

// Ranking sorts teams by total descending; ties break by team name. The tie
// break is arbitrary but deterministic, which beats flapping order in the
// scoreboard.
func (l *Ledger) Ranking(lobbyID string) []TeamTotal {
	totals := l.Totals(lobbyID)

	ranking := make([]TeamTotal, 0, len(totals))
	for team, points := range totals {
		ranking = append(ranking, TeamTotal{Team: team, Points: points})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Points != ranking[j].Points {
			return ranking[i].Points > ranking[j].Points
		}
		return ranking[i].Team < ranking[j].Team
	})

	return ranking
}

// Drop forgets a lobby's events once the session is deleted or its report is
// archived.
func (l *Ledger) Drop(lobbyID string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	delete(l.events, lobbyID)
}
