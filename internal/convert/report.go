package convert

// Severity ranks an Issue. Only critical issues can fail a conversion
// outright; errors degrade single nodes and warnings are advisory.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Category says which stage of the pipeline raised an Issue.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryIO             Category = "io"
	CategoryNetwork        Category = "network"
	CategoryNodeProcessing Category = "node_processing"
	CategoryConversion     Category = "conversion"
)

// Issue is one diagnostic attached to a conversion.
type Issue struct {
	Category Category       `json:"category"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	NodeID   string         `json:"node_id,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// Report is the structured outcome of a conversion. Success means the payload
// is non-empty and nothing critical happened; errors and warnings may still
// be present on a successful run.
type Report struct {
	Success  bool    `json:"success"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`

	Processed int `json:"processed_nodes"`
	Skipped   int `json:"skipped_nodes"`
	Total     int `json:"total_nodes"`
}

func (r *Report) warn(cat Category, msg, nodeID string, details map[string]any) {
	r.Warnings = append(r.Warnings, Issue{
		Category: cat, Severity: SeverityWarning, Message: msg, NodeID: nodeID, Details: details,
	})
}

func (r *Report) error(cat Category, msg, nodeID string, details map[string]any) {
	r.Errors = append(r.Errors, Issue{
		Category: cat, Severity: SeverityError, Message: msg, NodeID: nodeID, Details: details,
	})
}

func (r *Report) critical(cat Category, msg string) {
	r.Errors = append(r.Errors, Issue{Category: cat, Severity: SeverityCritical, Message: msg})
}

// HasCritical reports whether any collected error is critical.
func (r *Report) HasCritical() bool {
	for _, e := range r.Errors {
		if e.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
