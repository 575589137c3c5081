package model

import (
	"time"

	"github.com/partyhub-games/partyhub/internal/content"
	drawingModel "github.com/partyhub-games/partyhub/internal/database/drawing/model"
	"github.com/partyhub-games/partyhub/internal/scoring"
)

// Report is the payload an engine hands over when a session finishes: final
// scores, every persisted drawing and, for relay, the reconstructed chains.
type Report struct {
	LobbyID    string    `json:"lobbyId"`
	Code       string    `json:"code"`
	Mode       string    `json:"mode"`
	FinishedAt time.Time `json:"finishedAt"`

	Ranking  []scoring.TeamTotal    `json:"ranking,omitempty"`
	Events   []scoring.Event        `json:"events,omitempty"`
	Drawings []drawingModel.Drawing `json:"drawings,omitempty"`
	Chains   []Chain                `json:"chains,omitempty"`
}

// Chain is the full history of one relay reference image: the original
// reference followed by every round's drawing in order. It is reconstructed
// at read time from persisted drawings, never stored during play.
type Chain struct {
	Chain     int               `json:"chain"`
	Reference content.Reference `json:"reference"`
	Links     []Link            `json:"links"`
}

type Link struct {
	Round     int    `json:"round"`
	Team      string `json:"team"`
	ImageData []byte `json:"imageData"`
}
