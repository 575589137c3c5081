package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type GameMode uint8

const (
	ModeQuiz GameMode = iota + 1
	ModePictionary
	ModeRelay
)

func (m GameMode) String() string {
	switch m {
	case ModeQuiz:
		return "quiz"
	case ModePictionary:
		return "pictionary"
	case ModeRelay:
		return "relay"
	}
	return "unknown"
}

type Status uint8

const (
	StatusWaiting Status = iota + 1
	StatusPlaying
	StatusFinished
	StatusArchived
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	case StatusArchived:
		return "archived"
	}
	return "unknown"
}

// legalMove is the full transition table. Stop is the playing→waiting edge.
func legalMove(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusPlaying
	case StatusPlaying:
		return to == StatusFinished || to == StatusWaiting
	case StatusFinished:
		return to == StatusArchived
	}
	return false
}

func NewParticipant(displayName, teamName string) *Participant {
	return &Participant{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		TeamName:    teamName,
		Online:      true,
		JoinedAt:    time.Now(),
	}
}

type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	TeamName    string    `json:"teamName"`
	Online      bool      `json:"online"`
	RoomMaster  bool      `json:"roomMaster"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func New(mode GameMode, code, createdBy string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Code:      code,
		Mode:      mode,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		status:    StatusWaiting,
	}
}

// Session is the shared lobby state every engine embeds. Mutations go through
// the owning mailbox; the mutex only covers snapshot reads taken outside it.
type Session struct {
	ID        string
	Code      string
	Mode      GameMode
	CreatedBy string
	CreatedAt time.Time

	mtx          sync.RWMutex
	status       Status
	participants []*Participant
}

func (s *Session) Status() Status {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.status
}

func (s *Session) SetStatus(to Status) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !legalMove(s.status, to) {
		return InvalidState("session %s: no edge %s -> %s", s.ID, s.status, to)
	}
	s.status = to
	return nil
}

// Join registers a participant. A returning participant (same ID) is marked
// online again instead of being appended twice; a fresh participant reusing
// a taken display name is rejected.
func (s *Session) Join(p *Participant) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, existing := range s.participants {
		if existing.ID == p.ID {
			existing.Online = true
			return nil
		}
	}

	for _, existing := range s.participants {
		if existing.DisplayName == p.DisplayName {
			return Duplicate("display name %q is taken", p.DisplayName)
		}
	}

	s.participants = append(s.participants, p)
	return nil
}

// Leave marks the participant offline. It never reorders the roster: the
// drawing-save protocol depends on stable join order.
func (s *Session) Leave(participantID string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, p := range s.participants {
		if p.ID == participantID {
			p.Online = false
			return nil
		}
	}

	return NotFound("participant %s", participantID)
}

func (s *Session) Participant(participantID string) (*Participant, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, p := range s.participants {
		if p.ID == participantID {
			return p, true
		}
	}

	return nil, false
}

func (s *Session) Participants() []*Participant {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]*Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

func (s *Session) OnlineLen() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var n int
	for _, p := range s.participants {
		if p.Online {
			n++
		}
	}
	return n
}

// Teams returns team names in first-join order.
func (s *Session) Teams() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var teams []string
	seen := map[string]struct{}{}
	for _, p := range s.participants {
		if _, ok := seen[p.TeamName]; ok {
			continue
		}
		seen[p.TeamName] = struct{}{}
		teams = append(teams, p.TeamName)
	}
	return teams
}

// TeamMembers returns the members of a team in join order.
func (s *Session) TeamMembers(team string) []*Participant {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var members []*Participant
	for _, p := range s.participants {
		if p.TeamName == team {
			members = append(members, p)
		}
	}
	return members
}

// Uploader is the participant allowed to persist the team's canvas for a
// round: the first team member by join order. The second return is false
// when the team has no members at all.
func (s *Session) Uploader(team string) (*Participant, bool) {
	members := s.TeamMembers(team)
	if len(members) == 0 {
		return nil, false
	}
	return members[0], true
}

// PromoteRoomMaster grants the room-master role; only the creator may do it.
func (s *Session) PromoteRoomMaster(actorID, participantID string) error {
	if actorID != s.CreatedBy {
		return Forbidden("only the creator can promote a room master")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, p := range s.participants {
		if p.ID == participantID {
			p.RoomMaster = true
			return nil
		}
	}

	return NotFound("participant %s", participantID)
}

// IsMaster reports whether the actor may run privileged lifecycle commands:
// the session creator or a promoted room master.
func (s *Session) IsMaster(actorID string) bool {
	if actorID == s.CreatedBy {
		return true
	}

	if p, ok := s.Participant(actorID); ok {
		return p.RoomMaster
	}
	return false
}
