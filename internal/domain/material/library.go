package material

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// TypeFilter selects records by file type. "all" keeps everything.
type TypeFilter string

const (
	FilterAll  TypeFilter = "all"
	FilterPDF  TypeFilter = "pdf"
	FilterText TypeFilter = "text"
)

// Filter narrows a history listing.
type Filter struct {
	Search string     // matched against titles, case-insensitive
	Type   TypeFilter // "" behaves like FilterAll
}

// Apply returns the records matching f, newest first.
func (f Filter) Apply(records []Record) []Record {
	search := strings.TrimSpace(f.Search)

	out := lo.Filter(records, func(r Record, _ int) bool {
		if f.Type != "" && f.Type != FilterAll && string(r.Material.FileType) != string(f.Type) {
			return false
		}
		return search == "" || fuzzy.MatchFold(search, r.Material.Title)
	})

	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders records by upload time, most recent first, keeping
// the input order among equal timestamps.
func SortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return b.Material.UploadedAt.Compare(a.Material.UploadedAt.Time)
	})
}

// Stats summarizes a user's library for the dashboard.
type Stats struct {
	TotalMaterials int `json:"total_materials" yaml:"total_materials"`
	Summaries      int `json:"summaries" yaml:"summaries"`
	Quizzes        int `json:"quizzes" yaml:"quizzes"`
	Concepts       int `json:"concepts" yaml:"concepts"`
	Pending        int `json:"pending" yaml:"pending"`
}

// ComputeStats counts materials and their generated content.
func ComputeStats(records []Record) Stats {
	return Stats{
		TotalMaterials: len(records),
		Summaries:      lo.CountBy(records, func(r Record) bool { return r.GeneratedData.HasSummary() }),
		Quizzes:        lo.CountBy(records, func(r Record) bool { return r.GeneratedData.HasQuiz() }),
		Concepts:       lo.CountBy(records, func(r Record) bool { return r.GeneratedData.HasConcepts() }),
		Pending:        lo.CountBy(records, func(r Record) bool { return !r.HasAnyGenerated() }),
	}
}

// Tab is one pane of the material viewer.
type Tab string

const (
	TabContent  Tab = "content"
	TabSummary  Tab = "summary"
	TabQuiz     Tab = "quiz"
	TabConcepts Tab = "concepts"
)

// Tabs lists the panes available for a record. The content pane always
// exists; the others appear once their data does.
func (r Record) Tabs() []Tab {
	candidates := []tabCandidate{
		{TabContent, true},
		{TabSummary, r.GeneratedData.HasSummary()},
		{TabQuiz, r.GeneratedData.HasQuiz()},
		{TabConcepts, r.GeneratedData.HasConcepts()},
	}
	return lo.FilterMap(candidates, func(c tabCandidate, _ int) (Tab, bool) {
		return c.tab, c.available
	})
}

type tabCandidate struct {
	tab       Tab
	available bool
}

// HasTab reports whether t is available for the record.
func (r Record) HasTab(t Tab) bool {
	return lo.Contains(r.Tabs(), t)
}
