// Package moduleinfo resolves presentation metadata for feature modules.
// The table is static and non-authoritative: unknown codes fall back to
// the code itself and a default icon, never an error.
package moduleinfo

// Lookup resolves display metadata for a module code.
type Lookup interface {
	Name(code string) string
	Icon(code string) string
}

const defaultIcon = "apps"

type entry struct {
	name string
	icon string
}

// Static is the stock Lookup backed by a fixed table.
type Static struct {
	entries map[string]entry
}

// NewStatic returns the built-in module metadata table.
func NewStatic() *Static {
	return &Static{entries: map[string]entry{
		"HR":        {name: "Human Resources", icon: "people"},
		"ADMIN":     {name: "Administration", icon: "settings"},
		"ABSENCES":  {name: "Absences", icon: "event_busy"},
		"TICKETS":   {name: "Ticketing", icon: "confirmation_number"},
		"CONTENT":   {name: "Content", icon: "article"},
		"TRAINING":  {name: "Training", icon: "school"},
		"REPORTS":   {name: "Reports", icon: "bar_chart"},
		"DOCUMENTS": {name: "Documents", icon: "folder"},
	}}
}

func (s *Static) Name(code string) string {
	if e, ok := s.entries[code]; ok {
		return e.name
	}
	return code
}

func (s *Static) Icon(code string) string {
	if e, ok := s.entries[code]; ok {
		return e.icon
	}
	return defaultIcon
}
