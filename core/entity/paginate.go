package entity

// Page is one page of a filtered view.
type Page struct {
	Rows       []Row `json:"rows"`
	Number     int   `json:"page"`
	Size       int   `json:"size"`
	Total      int   `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// TotalPages is ceil(n/size), never less than 1.
func TotalPages(n, size int) int {
	if size < 1 {
		size = 1
	}
	pages := (n + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate slices rows into page number page (clamped to [1, TotalPages]).
func Paginate(rows []Row, page, size int) Page {
	if size < 1 {
		size = 1
	}
	total := TotalPages(len(rows), size)
	page = clamp(page, 1, total)

	start := (page - 1) * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	pageRows := make([]Row, 0, end-start)
	if start < end {
		pageRows = append(pageRows, rows[start:end]...)
	}
	return Page{
		Rows:       pageRows,
		Number:     page,
		Size:       size,
		Total:      len(rows),
		TotalPages: total,
		HasPrev:    page > 1,
		HasNext:    page < total,
	}
}

// PageState is the current page of a view. Current is always kept >= 1.
type PageState struct {
	Current int
	Size    int
}

func NewPageState(size int) PageState {
	if size < 1 {
		size = 1
	}
	return PageState{Current: 1, Size: size}
}

func (p *PageState) Reset() { p.Current = 1 }

// Next moves forward; it is a no-op on the last page.
func (p *PageState) Next(totalPages int) { p.GoTo(p.Current+1, totalPages) }

// Prev moves back; it is a no-op on the first page.
func (p *PageState) Prev(totalPages int) { p.GoTo(p.Current-1, totalPages) }

func (p *PageState) GoTo(page, totalPages int) {
	p.Current = clamp(page, 1, totalPages)
}

func clamp(n, low, high int) int {
	if high < low {
		high = low
	}
	if n < low {
		return low
	}
	if n > high {
		return high
	}
	return n
}
