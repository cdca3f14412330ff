package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRetention возвращается при некорректном сроке хранения данных.
var ErrInvalidRetention = errors.New("invalid data retention")

// DetectionMethod — способ поиска кнопки «Установить контакт» на странице.
type DetectionMethod string

// DetectionAuto — скрипт страницы сам выбирает способ поиска.
const DetectionAuto DetectionMethod = "auto"

// RetentionUnlimited — строковое значение бессрочного хранения.
const RetentionUnlimited = "unlimited"

// RetentionDays — срок хранения профилей в днях, 0 означает бессрочно.
type RetentionDays int

// Window возвращает срок хранения как длительность, 0 — без ограничения.
func (r RetentionDays) Window() time.Duration {
	if r <= 0 {
		return 0
	}
	return time.Duration(r) * 24 * time.Hour
}

// MarshalJSON пишет "unlimited" для бессрочного хранения.
func (r RetentionDays) MarshalJSON() ([]byte, error) {
	if r <= 0 {
		return json.Marshal(RetentionUnlimited)
	}
	return json.Marshal(int(r))
}

// UnmarshalJSON принимает число, числовую строку или "unlimited".
func (r *RetentionDays) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidRetention, n)
		}
		*r = RetentionDays(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRetention, string(data))
	}
	parsed, err := ParseRetention(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRetention разбирает строковое значение срока хранения.
func ParseRetention(raw string) (RetentionDays, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == RetentionUnlimited || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRetention, raw)
	}
	return RetentionDays(n), nil
}

// Settings — пользовательские настройки.
type Settings struct {
	AutoResume      bool            `json:"autoResume"`
	AutoExtract     bool            `json:"autoExtract"`
	Notifications   bool            `json:"notifications"`
	DarkMode        bool            `json:"darkMode"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`
	DataStorageDays RetentionDays   `json:"dataStorageDays"`
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		AutoResume:      true,
		AutoExtract:     true,
		Notifications:   true,
		DarkMode:        false,
		DetectionMethod: DetectionAuto,
		DataStorageDays: 90,
	}
}

// SettingsPatch — частичное обновление настроек.
type SettingsPatch struct {
	AutoResume      *bool            `json:"autoResume,omitempty"`
	AutoExtract     *bool            `json:"autoExtract,omitempty"`
	Notifications   *bool            `json:"notifications,omitempty"`
	DarkMode        *bool            `json:"darkMode,omitempty"`
	DetectionMethod *DetectionMethod `json:"detectionMethod,omitempty"`
	DataStorageDays *RetentionDays   `json:"dataStorageDays,omitempty"`
}

// Apply накладывает изменения на настройки.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.AutoResume != nil {
		s.AutoResume = *p.AutoResume
	}
	if p.AutoExtract != nil {
		s.AutoExtract = *p.AutoExtract
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	if p.DetectionMethod != nil && *p.DetectionMethod != "" {
		s.DetectionMethod = *p.DetectionMethod
	}
	if p.DataStorageDays != nil {
		s.DataStorageDays = *p.DataStorageDays
	}
	return s
}
