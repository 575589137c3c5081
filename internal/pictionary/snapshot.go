package pictionary

type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	TeamName    string `json:"teamName"`
	Online      bool   `json:"online"`
}

type Snapshot struct {
	SessionID        string            `json:"sessionId"`
	Code             string            `json:"code"`
	Mode             string            `json:"mode"`
	Status           string            `json:"status"`
	PassageIndex     int               `json:"passageIndex"`
	TotalPassages    int               `json:"totalPassages"`
	DrawingTeam      string            `json:"drawingTeam"`
	CurrentDrawer    string            `json:"currentDrawer,omitempty"`
	TeamsFound       []string          `json:"teamsFound"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Participants     []ParticipantView `json:"participants"`
	Totals           map[string]int    `json:"totals"`
}

// AdminSnapshot exposes the word being drawn, which peers must not see.
type AdminSnapshot struct {
	Snapshot
	Word string `json:"word"`
}

type GuessResult struct {
	Team    string `json:"team"`
	Correct bool   `json:"correct"`
	Order   int    `json:"order,omitempty"`
}

type Reveal struct {
	Word       string   `json:"word"`
	TeamsFound []string `json:"teamsFound"`
}
