package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"connection-pro/internal/domain"
)

const exportDateLayout = "Jan 2, 2006"

var templateDisplayNames = map[string]string{
	"default":    "Default Template",
	"recruiter":  "Recruiter Template",
	"sales":      "Sales Template",
	"networking": "Networking Template",
}

// FormatCSV сериализует статистику в два раздела: отправки по дням и по шаблонам.
// Даты содержат запятую и не экранируются, поэтому encoding/csv здесь не подходит.
func FormatCSV(a domain.Analytics) (string, error) {
	if a.Empty() {
		return "", ErrNoData
	}
	var b strings.Builder
	b.WriteString("Date,Connections Sent\n")

	days := make([]string, 0, len(a.ByDate))
	for day := range a.ByDate {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		b.WriteString(formatDay(day))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(a.ByDate[day].Sent))
		b.WriteByte('\n')
	}

	b.WriteString("\n\nTemplate Performance\n")
	b.WriteString("Template,Sent\n")
	a.ByTemplate.Each(func(id string, st domain.TemplateStats) {
		b.WriteString(TemplateDisplayName(id))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(st.Sent))
		b.WriteByte('\n')
	})
	return b.String(), nil
}

// TemplateDisplayName возвращает человекочитаемое имя шаблона.
func TemplateDisplayName(id string) string {
	if name, ok := templateDisplayNames[id]; ok {
		return name
	}
	words := strings.Split(id, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatDay(day string) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return day
	}
	return t.Format(exportDateLayout)
}
