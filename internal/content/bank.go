package content

// Read-only bank snapshots. A session captures its snapshot at creation;
// bank edits made afterwards never reach a running session, so every type
// here is plain data with copy helpers and no backing store reference.

type Word struct {
	ID         string `json:"id"`
	Word       string `json:"word"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type Reference struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Category string `json:"category"`
}

type QuestionType uint8

const (
	QuestionKindOpen QuestionType = iota + 1
	QuestionKindChoice
)

type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Answer  string       `json:"answer"`
	Choices []string     `json:"choices"`
	Points  int          `json:"points"`
	Timer   int          `json:"timer"`
	Type    QuestionType `json:"type"`
}

func CloneWords(words []Word) []Word {
	out := make([]Word, len(words))
	copy(out, words)
	return out
}

func CloneReferences(refs []Reference) []Reference {
	out := make([]Reference, len(refs))
	copy(out, refs)
	return out
}

func CloneQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Choices = append([]string(nil), q.Choices...)
		out[i] = q
	}
	return out
}
