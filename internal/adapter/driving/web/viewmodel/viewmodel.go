// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// PreviewPageViewModel holds everything the dry-run preview page renders.
type PreviewPageViewModel struct {
	Title       string
	LogicalDate string
	Suppressed  bool
	Teams       []TeamPreviewViewModel
}

// TeamPreviewViewModel is one team's rendered reminder, or the reason there is none.
type TeamPreviewViewModel struct {
	Name        string
	Status      string
	StatusClass string
	StaleCount  int
	Filtered    int
	Dropped     int
	Error       string
	Failures    []FailureViewModel
	Message     string // Sanitized HTML; empty when nothing was rendered.
}

// FailureViewModel is a project that could not be fetched.
type FailureViewModel struct {
	Project string
	Kind    string
	Error   string
}
