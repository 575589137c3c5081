package model

import (
	"fmt"
	"time"
)

// Drawing is the immutable final snapshot of a team's shared canvas for one
// round. At most one instance exists per slot; the save protocol ignores
// later uploads for the same slot.
type Drawing struct {
	ID         string    `json:"id"`
	LobbyID    string    `json:"lobbyId"`
	Round      int       `json:"round"`
	Team       string    `json:"team"`
	Key        string    `json:"key"` // chain index or drawn word
	UploadedBy string    `json:"uploadedBy"`
	ImageData  []byte    `json:"imageData"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SlotID identifies the uniqueness slot (lobby, round, team).
func (d Drawing) SlotID() string {
	return SlotID(d.LobbyID, d.Round, d.Team)
}

func SlotID(lobbyID string, round int, team string) string {
	return fmt.Sprintf("%s/%d/%s", lobbyID, round, team)
}
