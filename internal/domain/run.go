package domain

import "time"

// Phase описывает состояние автомата обработки очереди.
type Phase string

const (
	// PhaseIdle — прогон ещё не запускался.
	PhaseIdle Phase = "idle"
	// PhaseDispatching — открывается вкладка и ожидается загрузка страницы.
	PhaseDispatching Phase = "dispatching"
	// PhaseAwaitingOutcome — действие отправлено, ждём сигнал успеха или ошибки.
	PhaseAwaitingOutcome Phase = "awaiting_outcome"
	// PhaseCooldown — идёт пауза перед следующим профилем.
	PhaseCooldown Phase = "cooldown"
	// PhaseStopped — прогон остановлен пользователем.
	PhaseStopped Phase = "stopped"
	// PhaseCompleted — очередь обработана полностью.
	PhaseCompleted Phase = "completed"
)

// ProfileRef — адрес профиля в очереди.
type ProfileRef string

// RunState — единственное изменяемое описание прогона. Сохраняется целиком.
type RunState struct {
	RunID           string       `json:"runId,omitempty"`
	IsRunning       bool         `json:"isRunning"`
	Phase           Phase        `json:"phase"`
	Queue           []ProfileRef `json:"queue"`
	CurrentIndex    int          `json:"currentIndex"`
	ResumeIndex     int          `json:"resumeIndex"`
	ActiveChannelID string       `json:"activeChannelId,omitempty"`
	LastActiveAt    time.Time    `json:"lastActiveAt"`
	MessageText     string       `json:"messageText"`
	TemplateID      string       `json:"templateId"`
	DelayMs         int64        `json:"delayMs"`
}

// NewRunState возвращает состояние по умолчанию.
func NewRunState() RunState {
	return RunState{Phase: PhaseIdle, TemplateID: DefaultTemplateID}
}

// Total возвращает длину очереди.
func (s RunState) Total() int {
	return len(s.Queue)
}

// Delay возвращает паузу между профилями.
func (s RunState) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

// SameQueue сообщает, совпадает ли очередь с переданной.
func (s RunState) SameQueue(queue []ProfileRef) bool {
	if len(s.Queue) != len(queue) {
		return false
	}
	for i := range queue {
		if s.Queue[i] != queue[i] {
			return false
		}
	}
	return true
}

// RunParams — параметры запуска, фиксированные на весь прогон.
type RunParams struct {
	Queue       []ProfileRef
	MessageText string
	TemplateID  string
	DelayMs     int64
	StartIndex  *int
}

// DispatchAction — команда, которую контроллер передаёт странице профиля.
type DispatchAction struct {
	Action          string          `json:"action"`
	Note            string          `json:"note"`
	TemplateID      string          `json:"templateId"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`
	AutoExtract     bool            `json:"autoExtract"`
	ProfileURL      string          `json:"profileUrl"`
	Index           int             `json:"index"`
}

// ActionSendConnection — имя действия отправки запроса на контакт.
const ActionSendConnection = "sendConnection"

// Status — снимок прогресса для клиентов.
type Status struct {
	StatusText   string `json:"status"`
	Progress     int    `json:"progress"`
	IsRunning    bool   `json:"is_running"`
	CurrentIndex int    `json:"current"`
	Total        int    `json:"total"`
	ResumeIndex  int    `json:"resume_point"`
	Phase        Phase  `json:"phase"`
	RunID        string `json:"run_id,omitempty"`
}
