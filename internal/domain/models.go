package domain

import "time"

// Difficulty labels accepted by the test service.
const (
	DifficultyEasy         = "easy"
	DifficultyMedium       = "medium"
	DifficultyIntermediate = "intermediate"
	DifficultyHard         = "hard"
)

// TestConfig is what the user picks before a test starts. It is immutable once
// a session is in progress.
type TestConfig struct {
	TestID         string   `json:"test_id,omitempty"`
	Subject        string   `json:"subject,omitempty"`
	Subjects       []string `json:"subjects" validate:"required,min=1,dive,required"`
	TotalQuestions int      `json:"total_questions" validate:"gt=0,lte=100"`
	Duration       int      `json:"duration" validate:"gt=0"` // minutes
	Difficulty     string   `json:"difficulty" validate:"required,oneof=easy medium intermediate hard"`
	Topics         []string `json:"topics"`
}

// PrimarySubject returns the first configured subject.
func (c TestConfig) PrimarySubject() string {
	if len(c.Subjects) > 0 {
		return c.Subjects[0]
	}
	return c.Subject
}

// DurationSeconds is the full time budget of the test.
func (c TestConfig) DurationSeconds() int {
	return c.Duration * 60
}

// Question models an MCQ question. CorrectAnswer and Explanation are only
// populated once results are available.
type Question struct {
	ID            string            `json:"question_id"`
	Subject       string            `json:"subject"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	Topic         string            `json:"topic,omitempty"`
	Difficulty    string            `json:"difficulty,omitempty"`
	Marks         int               `json:"marks,omitempty"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
}

// HasOption reports whether key is one of the question's option keys.
func (q Question) HasOption(key string) bool {
	_, ok := q.Options[key]
	return ok
}

// QuestionSet is what the test service returns for a test identifier.
type QuestionSet struct {
	TestID    string     `json:"test_id"`
	Questions []Question `json:"questions"`
	Duration  int        `json:"duration"`
	Subjects  []string   `json:"subjects,omitempty"`
}

// AnswerMap maps question ID to the chosen option key.
type AnswerMap map[string]string

// Clone returns an independent copy of the map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Submission is the payload sent when a test is handed in.
type Submission struct {
	TestID    string    `json:"test_id"`
	Answers   AnswerMap `json:"answers"`
	TimeTaken int       `json:"time_taken"` // seconds
}

// QuestionOutcome is the per-question correctness reported by the service.
type QuestionOutcome struct {
	QuestionID    string `json:"question_id"`
	Selected      string `json:"selected,omitempty"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Correct       bool   `json:"correct"`
}

// Results is the scored projection of a completed test.
type Results struct {
	TestID           string             `json:"test_id,omitempty"`
	Score            float64            `json:"score"`
	CorrectAnswers   int                `json:"correct_answers"`
	TotalQuestions   int                `json:"total_questions"`
	TimeTaken        int                `json:"time_taken"`
	Percentage       float64            `json:"percentage"`
	SubmittedAt      *time.Time         `json:"submitted_at,omitempty"`
	PerformanceLevel string             `json:"performance_level,omitempty"`
	SubjectBreakdown map[string]float64 `json:"subject_breakdown,omitempty"`
	TopicBreakdown   map[string]float64 `json:"topic_breakdown,omitempty"`
	Questions        []QuestionOutcome  `json:"question_results,omitempty"`
}

// SnapshotVersion is written into every persisted snapshot.
const SnapshotVersion = "1.0"

// Snapshot is the restartable subset of a session written to the local store.
type Snapshot struct {
	Version        string      `json:"version"`
	TestID         string      `json:"testId"`
	Config         *TestConfig `json:"config,omitempty"`
	Answers        AnswerMap   `json:"answers"`
	ElapsedSeconds int         `json:"elapsedSeconds"`
	CurrentIndex   int         `json:"currentIndex"`
	ActiveSubject  string      `json:"activeSubject,omitempty"`
	CapturedAt     time.Time   `json:"capturedAt"`
}

// Analysis is a generated performance write-up in markdown.
type Analysis struct {
	SessionID string `json:"session_id"`
	TestID    string `json:"test_id,omitempty"`
	Markdown  string `json:"analysis"`
}

// User is the account returned by the auth service.
type User struct {
	ID       string `json:"user_id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Credentials are used for both login and registration.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// AuthResponse carries the opaque access token issued by the auth service.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
