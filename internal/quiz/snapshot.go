package quiz

type QuestionView struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices,omitempty"`
	Points  int      `json:"points"`
	Timer   int      `json:"timer"`
}

type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	TeamName    string `json:"teamName"`
	Online      bool   `json:"online"`
	HasAnswered bool   `json:"hasAnswered"`
}

type Snapshot struct {
	SessionID        string            `json:"sessionId"`
	Code             string            `json:"code"`
	Mode             string            `json:"mode"`
	Status           string            `json:"status"`
	QuestionIndex    int               `json:"questionIndex"`
	QuestionCount    int               `json:"questionCount"`
	Question         *QuestionView     `json:"question,omitempty"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Participants     []ParticipantView `json:"participants"`
	Totals           map[string]int    `json:"totals"`
}

// AdminSnapshot carries the answer content the peer view deliberately hides.
type AdminSnapshot struct {
	Snapshot
	Answers     map[string]map[int]Answer `json:"answers"`
	Validations map[string]map[int]bool   `json:"validations"`
}
