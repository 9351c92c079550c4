package quality

import (
	"encoding/json"
	"sort"
	"strings"

	"dqmon/domain/core"
)

// FindingKind names the check that produced a finding
type FindingKind string

const (
	KindMissing    FindingKind = "MISSING"
	KindDuplicate  FindingKind = "DUPLICATE"
	KindAnomaly    FindingKind = "ANOMALY"
	KindCustomRule FindingKind = "CUSTOM_RULE"
	KindLoadError  FindingKind = "LOAD_ERROR"
)

// Finding is one detected issue. A finding with Error set records a fault
// (a check or rule that could not be evaluated) rather than a data violation.
type Finding struct {
	Kind       FindingKind    `json:"kind"`
	Message    string         `json:"message"`
	Count      int            `json:"count,omitempty"`
	RowIndices []int          `json:"affected_row_indices,omitempty"`
	Error      string         `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// NewFinding builds a violation finding. Row indices are copied and sorted.
func NewFinding(kind FindingKind, message string, count int, rows []int) Finding {
	f := Finding{Kind: kind, Message: message, Count: count}
	if len(rows) > 0 {
		f.RowIndices = make([]int, len(rows))
		copy(f.RowIndices, rows)
		sort.Ints(f.RowIndices)
	}
	return f
}

// NewErrorFinding builds a finding that records a fault of the given kind
func NewErrorFinding(kind FindingKind, message string, err error) Finding {
	f := Finding{Kind: kind, Message: message}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

// IsError reports whether the finding records a fault
func (f Finding) IsError() bool {
	return f.Error != ""
}

// WithDetails returns a copy of the finding carrying diagnostic details
func (f Finding) WithDetails(details map[string]any) Finding {
	f.Details = details
	return f
}

// Report is the ordered list of findings of one evaluation, in check-execution order
type Report struct {
	Findings []Finding `json:"findings"`
}

// NewReport returns an empty report
func NewReport() *Report {
	return &Report{Findings: []Finding{}}
}

// Add appends findings in order
func (r *Report) Add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// HasIssues reports whether an alert is warranted
func (r *Report) HasIssues() bool {
	return r != nil && len(r.Findings) > 0
}

// Len returns the number of findings
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Findings)
}

// ByKind returns the findings of one kind, preserving order
func (r *Report) ByKind(kind FindingKind) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// CountByKind returns the number of findings per kind
func (r *Report) CountByKind() map[FindingKind]int {
	out := make(map[FindingKind]int)
	for _, f := range r.Findings {
		out[f.Kind]++
	}
	return out
}

// Summary joins finding messages one per line
func (r *Report) Summary() string {
	lines := make([]string, 0, r.Len())
	for _, f := range r.Findings {
		lines = append(lines, f.Message)
	}
	return strings.Join(lines, "\n")
}

// Fingerprint hashes the findings. Identical reports share a fingerprint.
func (r *Report) Fingerprint() core.Hash {
	data, err := json.Marshal(r.Findings)
	if err != nil {
		return core.NewHash([]byte(r.Summary()))
	}
	return core.NewHash(data)
}

// ReportRecord is a report as persisted and delivered by the surrounding process
type ReportRecord struct {
	ID          core.ReportID  `json:"id"`
	Source      string         `json:"source"`
	GeneratedAt core.Timestamp `json:"generated_at"`
	Fingerprint core.Hash      `json:"fingerprint"`
	Report      *Report        `json:"report"`
}

// NewReportRecord stamps a report with an ID, time and fingerprint
func NewReportRecord(source string, report *Report) *ReportRecord {
	if report == nil {
		report = NewReport()
	}
	return &ReportRecord{
		ID:          core.NewReportID(),
		Source:      source,
		GeneratedAt: core.Now(),
		Fingerprint: report.Fingerprint(),
		Report:      report,
	}
}

// HasIssues reports whether the record's report warrants an alert
func (rec *ReportRecord) HasIssues() bool {
	return rec != nil && rec.Report.HasIssues()
}
