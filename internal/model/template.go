package model

import "time"

// Template is a reusable workflow definition. Instantiating a template
// copies its definition into a fresh draft workflow; the template itself is
// never executed. UsageCount orders template listings by popularity.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Definition  Workflow  `json:"definition"`
	UsageCount  int       `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
}
