package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DayStats — счётчики за календарный день.
type DayStats struct {
	Sent       int `json:"sent"`
	Successful int `json:"successful"`
}

// TemplateStats — счётчики по шаблону сообщения.
type TemplateStats struct {
	Sent     int `json:"sent"`
	Accepted int `json:"accepted"`
}

// TemplateTable хранит статистику шаблонов в порядке первого появления.
// В JSON сериализуется объектом с сохранением порядка ключей.
type TemplateTable struct {
	order []string
	stats map[string]TemplateStats
}

// Inc увеличивает счётчик отправок шаблона, создавая запись при первом обращении.
func (t *TemplateTable) Inc(templateID string) {
	if t.stats == nil {
		t.stats = make(map[string]TemplateStats)
	}
	st, ok := t.stats[templateID]
	if !ok {
		t.order = append(t.order, templateID)
	}
	st.Sent++
	t.stats[templateID] = st
}

// Get возвращает статистику шаблона.
func (t TemplateTable) Get(templateID string) (TemplateStats, bool) {
	st, ok := t.stats[templateID]
	return st, ok
}

// Len возвращает количество шаблонов.
func (t TemplateTable) Len() int {
	return len(t.order)
}

// Each обходит шаблоны в порядке вставки.
func (t TemplateTable) Each(fn func(templateID string, st TemplateStats)) {
	for _, id := range t.order {
		fn(id, t.stats[id])
	}
}

// Clone возвращает независимую копию.
func (t TemplateTable) Clone() TemplateTable {
	out := TemplateTable{
		order: append([]string(nil), t.order...),
		stats: make(map[string]TemplateStats, len(t.stats)),
	}
	for k, v := range t.stats {
		out.stats[k] = v
	}
	return out
}

// MarshalJSON сериализует таблицу объектом, сохраняя порядок вставки.
func (t TemplateTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(t.stats[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON читает объект, запоминая порядок ключей.
func (t *TemplateTable) UnmarshalJSON(data []byte) error {
	t.order = nil
	t.stats = make(map[string]TemplateStats)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("template table: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("template table: unexpected key %v", tok)
		}
		var st TemplateStats
		if err := dec.Decode(&st); err != nil {
			return fmt.Errorf("template table %q: %w", id, err)
		}
		if _, seen := t.stats[id]; !seen {
			t.order = append(t.order, id)
		}
		t.stats[id] = st
	}
	_, err = dec.Token()
	return err
}

// Analytics — накопительная статистика рассылки.
type Analytics struct {
	StartedAt        *time.Time          `json:"startedAt,omitempty"`
	EndedAt          *time.Time          `json:"endedAt,omitempty"`
	TotalSent        int                 `json:"totalSent"`
	Successful       int                 `json:"successful"`
	Failed           int                 `json:"failed"`
	AlreadyConnected int                 `json:"alreadyConnected"`
	ByDate           map[string]DayStats `json:"byDate"`
	ByTemplate       TemplateTable       `json:"byTemplate"`
	ErrorTypes       map[string]int      `json:"errorTypes"`
}

// NewAnalytics возвращает пустую статистику.
func NewAnalytics() Analytics {
	return Analytics{
		ByDate:     make(map[string]DayStats),
		ErrorTypes: make(map[string]int),
	}
}

// Clone возвращает глубокую копию статистики.
func (a Analytics) Clone() Analytics {
	out := a
	if a.StartedAt != nil {
		t := *a.StartedAt
		out.StartedAt = &t
	}
	if a.EndedAt != nil {
		t := *a.EndedAt
		out.EndedAt = &t
	}
	out.ByDate = make(map[string]DayStats, len(a.ByDate))
	for k, v := range a.ByDate {
		out.ByDate[k] = v
	}
	out.ErrorTypes = make(map[string]int, len(a.ErrorTypes))
	for k, v := range a.ErrorTypes {
		out.ErrorTypes[k] = v
	}
	out.ByTemplate = a.ByTemplate.Clone()
	return out
}

// Empty сообщает, что в статистике нет ни дней, ни шаблонов.
func (a Analytics) Empty() bool {
	return len(a.ByDate) == 0 && a.ByTemplate.Len() == 0
}
