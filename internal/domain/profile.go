package domain

import "time"

// ProfileData — данные профиля, которые передаёт скрипт страницы.
type ProfileData struct {
	ProfileID  string            `json:"profileId"`
	Name       string            `json:"name,omitempty"`
	Headline   string            `json:"headline,omitempty"`
	Company    string            `json:"company,omitempty"`
	Industry   string            `json:"industry,omitempty"`
	Location   string            `json:"location,omitempty"`
	URL        string            `json:"url,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ProfileRecord — закэшированные сведения о профиле.
type ProfileRecord struct {
	ProfileData
	LastUpdate time.Time `json:"lastUpdate"`
}
