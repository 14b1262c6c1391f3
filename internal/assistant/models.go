package assistant

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state reported for an assistant run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether polling should stop at this status. Unknown
// statuses are treated as still running.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete:
		return true
	default:
		return false
	}
}

// RunFailure is the diagnostic the assistant service attaches to a run.
type RunFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f *RunFailure) String() string {
	if f == nil {
		return ""
	}
	if f.Code == "" {
		return f.Message
	}
	return f.Code + ": " + f.Message
}

// Run is a long-running assistant operation on a thread.
type Run struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"threadId"`
	Status    RunStatus   `json:"status"`
	LastError *RunFailure `json:"lastError,omitempty"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one text message of a thread.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread is a conversation held by the assistant service.
type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// SystemNoteMarker prefixes assistant-role messages that record the thread
// profile. They are hidden from conversation listings.
const SystemNoteMarker = "[시스템 메시지]"

// IsSystemNote reports whether m records profile data rather than conversation.
func (m Message) IsSystemNote() bool {
	return strings.Contains(m.Text, SystemNoteMarker)
}

// ThreadProfile describes what is being grown, where, and since when.
type ThreadProfile struct {
	CropID    int    `json:"cropId"`
	CropName  string `json:"cropName,omitempty"`
	Address   string `json:"address"`
	PlantedAt string `json:"plantedAt"`
}

func creationNote(p ThreadProfile) string {
	return fmt.Sprintf("%s 사용자는 심은날짜 : %s, 주소 : %s에서 작물 : %s을(를) 재배하고 있습니다.",
		SystemNoteMarker, p.PlantedAt, p.Address, p.CropName)
}

func updateNote(p ThreadProfile) string {
	var b strings.Builder
	b.WriteString(SystemNoteMarker)
	b.WriteString("\n사용자 요청에 따라 주소지 변경 작업이 이루어졌습니다.\n\n[변경 사항]\n")
	fmt.Fprintf(&b, "- 변경된 주소지: %s\n", p.Address)
	b.WriteString("- 변경된 이유: 사용자의 요청에 따른 주소지 업데이트\n")
	fmt.Fprintf(&b, "- 변경된 심은날짜 : %s\n", p.PlantedAt)
	b.WriteString("- 변경된 이유: 사용자의 요청에 따른 심은날짜 업데이트\n")
	return b.String()
}

// ThreadRecord is a thread as known to the members backend.
type ThreadRecord struct {
	ThreadID  string `json:"threadId"`
	CropID    int    `json:"cropId"`
	CropName  string `json:"cropName,omitempty"`
	Address   string `json:"address"`
	PlantedAt string `json:"plantedAt"`
}

func recordFor(threadID string, p ThreadProfile) ThreadRecord {
	return ThreadRecord{
		ThreadID:  threadID,
		CropID:    p.CropID,
		CropName:  p.CropName,
		Address:   p.Address,
		PlantedAt: p.PlantedAt,
	}
}

// ThreadDetail is a thread with its visible conversation, oldest first.
type ThreadDetail struct {
	ThreadID string    `json:"threadId"`
	Messages []Message `json:"messages"`
}

// Reply is the assistant's answer to a user message.
type Reply struct {
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

// Date is a calendar date split into parts.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func dateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// WeatherSummary is the dashboard view of a decoded observation.
type WeatherSummary struct {
	Temp          float64 `json:"temp"`
	SkyCondition  string  `json:"skyCondition"`
	RainfallMM    float64 `json:"rainProbability"`
	RainCondition string  `json:"rainCondition"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection string  `json:"windDirection"`
}

// ThreadStatus is the dashboard payload for one thread.
type ThreadStatus struct {
	Address            string            `json:"address"`
	Weather            WeatherSummary    `json:"weather"`
	RecommendedActions map[string]string `json:"recommendedActions"`
	CreatedAt          Date              `json:"createdAt"`
}

var defaultRecommendedActions = []string{"물 주기", "비료 주기", "영양제 주기"}

func recommendedActions() map[string]string {
	actions := make(map[string]string, len(defaultRecommendedActions))
	for i, a := range defaultRecommendedActions {
		actions[fmt.Sprint(i)] = a
	}
	return actions
}
