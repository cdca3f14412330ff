package domain

// DefaultTemplateID — шаблон, который нельзя удалить.
const DefaultTemplateID = "default"

// TemplateSet сопоставляет идентификатор шаблона и текст с плейсхолдерами
// вида [Name], [Industry], [Company].
type TemplateSet map[string]string

// BuiltinTemplates возвращает встроенные шаблоны.
func BuiltinTemplates() TemplateSet {
	return TemplateSet{
		DefaultTemplateID: "Hi [Name], I noticed your profile and would like to connect. I work in [Industry] at [Company] and thought we might benefit from networking.",
		"recruiter":       "Hi [Name], I'm a recruiter at [Company] specializing in [Industry] roles. I'd love to connect and keep you updated on opportunities that match your expertise.",
		"sales":           "Hi [Name], I noticed your work in [Industry] at [Company]. I help professionals like you with [Value Proposition]. Would you be open to connecting?",
		"networking":      "Hi [Name], I'm expanding my professional network in the [Industry] space and your profile caught my attention. I'd be happy to connect and share insights.",
	}
}

// Clone возвращает копию набора.
func (t TemplateSet) Clone() TemplateSet {
	out := make(TemplateSet, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
