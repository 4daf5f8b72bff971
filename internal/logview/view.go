package logview

import (
	"fmt"
	"slices"

	"github.com/kahosan/mosdash/internal/model"
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{5, 10, 20, 50}

const DefaultPageSize = 10

// View is the transient table state owned by the console.
type View struct {
	Page     int
	PageSize int
	Search   string

	// LegacyOffset starts page N at N*PageSize instead of (N-1)*PageSize,
	// matching the first web console release which never showed the first
	// page of results.
	LegacyOffset bool
}

func NewView() View {
	return View{Page: 1, PageSize: DefaultPageSize}
}

// SetPage clamps page into [1, totalPages]. With no pages the view stays on page 1.
func (v *View) SetPage(page, totalPages int) {
	v.Page = max(1, min(page, totalPages))
}

// SetPageSize changes the page size and returns to page 1.
func (v *View) SetPageSize(n int) error {
	if !slices.Contains(PageSizes, n) {
		return fmt.Errorf("page size %d not in %v", n, PageSizes)
	}
	v.PageSize = n
	v.Page = 1
	return nil
}

// SetSearch changes the search term and returns to page 1.
func (v *View) SetSearch(term string) {
	v.Search = term
	v.Page = 1
}

// Offset is the index of the first row on the current page.
func (v View) Offset() int {
	if v.LegacyOffset {
		return v.Page * v.PageSize
	}
	return (v.Page - 1) * v.PageSize
}

func (v View) table(fields []string, filtered []model.LogEntry, total int) Table {
	size := v.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := max(v.Page, 1)
	v.Page, v.PageSize = page, size

	return Table{
		Fields:     fields,
		Rows:       window(filtered, v.Offset(), size),
		Total:      total,
		Filtered:   len(filtered),
		Page:       page,
		PageSize:   size,
		TotalPages: TotalPages(len(filtered), size),
	}
}
