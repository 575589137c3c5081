package relay

type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	TeamName    string `json:"teamName"`
	Online      bool   `json:"online"`
}

// Assignment tells one team what it observes this round: the original
// reference at round 0, otherwise the previous holder's drawing for the same
// chain. Missing marks a lost upload.
type Assignment struct {
	Team         string `json:"team"`
	Chain        int    `json:"chain"`
	ReferenceURL string `json:"referenceUrl,omitempty"`
	ImageData    []byte `json:"imageData,omitempty"`
	Missing      bool   `json:"missing,omitempty"`
}

type Snapshot struct {
	SessionID        string            `json:"sessionId"`
	Code             string            `json:"code"`
	Mode             string            `json:"mode"`
	Status           string            `json:"status"`
	RoundIndex       int               `json:"roundIndex"`
	Passages         int               `json:"passages"`
	Phase            string            `json:"phase"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Assignments      []Assignment      `json:"assignments"`
	Participants     []ParticipantView `json:"participants"`
}
