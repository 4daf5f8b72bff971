package logview

import (
	"slices"
	"strings"
	"time"

	"github.com/kahosan/mosdash/internal/model"
)

// Sort returns a copy of entries ordered newest first. Entries whose
// timestamp cannot be parsed are placed after every valid one.
func Sort(entries []model.LogEntry) []model.LogEntry {
	type keyed struct {
		entry model.LogEntry
		at    time.Time
		ok    bool
	}

	keys := make([]keyed, len(entries))
	for i, e := range entries {
		at, ok := e.Time()
		keys[i] = keyed{entry: e, at: at, ok: ok}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return b.at.Compare(a.at)
	})

	out := make([]model.LogEntry, len(keys))
	for i, k := range keys {
		out[i] = k.entry
	}
	return out
}

// Filter keeps the entries whose message, or any display field value,
// contains term case-insensitively. A blank term keeps everything.
func Filter(sorted []model.LogEntry, fields []string, term string) []model.LogEntry {
	if strings.TrimSpace(term) == "" {
		return sorted
	}

	needle := strings.ToLower(term)
	out := make([]model.LogEntry, 0, len(sorted))
	for _, e := range sorted {
		if matches(e, fields, needle) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e model.LogEntry, fields []string, needle string) bool {
	if strings.Contains(strings.ToLower(e.Message), needle) {
		return true
	}
	for _, f := range fields {
		v, ok := e.Fields[f]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(stringify(v)), needle) {
			return true
		}
	}
	return false
}

// Paginate returns page (1-based) of size entries.
func Paginate(filtered []model.LogEntry, page, size int) []model.LogEntry {
	return window(filtered, (page-1)*size, size)
}

func window(entries []model.LogEntry, start, size int) []model.LogEntry {
	if size <= 0 || start >= len(entries) {
		return entries[len(entries):]
	}
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

// TotalPages is ceil(n/size); zero when there is nothing to show.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Table is the derived state a renderer needs for one page.
type Table struct {
	Fields     []string
	Rows       []model.LogEntry
	Total      int // entries received
	Filtered   int // entries matching the search
	Page       int
	PageSize   int
	TotalPages int
}

// Compute runs the full derivation for a single view. Use Pipeline when the
// same entries are re-rendered under changing view state.
func Compute(entries []model.LogEntry, v View) Table {
	fields := DisplayFields(entries)
	filtered := Filter(Sort(entries), fields, v.Search)
	return v.table(fields, filtered, len(entries))
}

// Pipeline caches each derivation stage and recomputes a stage only when
// one of its inputs changes. Not safe for concurrent use.
type Pipeline struct {
	view     View
	entries  []model.LogEntry
	fields   []string
	sorted   []model.LogEntry
	filtered []model.LogEntry
	stale    bool
}

func NewPipeline(v View) *Pipeline {
	return &Pipeline{view: v}
}

// SetEntries replaces the input batch. Fields and ordering are recomputed;
// the current view state is kept.
func (p *Pipeline) SetEntries(entries []model.LogEntry) {
	p.entries = entries
	p.fields = DisplayFields(entries)
	p.sorted = Sort(entries)
	p.stale = true
}

// SetSearch changes the search term and returns to page 1.
func (p *Pipeline) SetSearch(term string) {
	if term == p.view.Search {
		return
	}
	p.view.SetSearch(term)
	p.stale = true
}

// SetPageSize changes the page size and returns to page 1.
func (p *Pipeline) SetPageSize(n int) error {
	return p.view.SetPageSize(n)
}

// GoTo moves to page, clamped into [1, TotalPages].
func (p *Pipeline) GoTo(page int) {
	p.view.SetPage(page, TotalPages(len(p.filter()), p.view.PageSize))
}

func (p *Pipeline) First() { p.GoTo(1) }
func (p *Pipeline) Prev()  { p.GoTo(p.view.Page - 1) }
func (p *Pipeline) Next()  { p.GoTo(p.view.Page + 1) }
func (p *Pipeline) Last()  { p.GoTo(TotalPages(len(p.filter()), p.view.PageSize)) }

// View returns the current view state.
func (p *Pipeline) View() View { return p.view }

// Table returns the derived table for the current view.
func (p *Pipeline) Table() Table {
	return p.view.table(p.fields, p.filter(), len(p.entries))
}

func (p *Pipeline) filter() []model.LogEntry {
	if p.stale {
		p.filtered = Filter(p.sorted, p.fields, p.view.Search)
		p.stale = false
	}
	return p.filtered
}
