package view

// DefaultPageSize is the table page size when none is configured.
const DefaultPageSize = 10

// Page is one slice of a longer list.
type Page struct {
	Items      []NormalizedReading `json:"items"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	Total      int                 `json:"total"`
	TotalPages int                 `json:"total_pages"`
}

// Paginate returns page (1-based) of items. Out of range pages are clamped.
func Paginate(items []NormalizedReading, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	totalPages := (total + size - 1) / size
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	pageItems := make([]NormalizedReading, end-start)
	copy(pageItems, items[start:end])

	return Page{Items: pageItems, Page: page, PageSize: size, Total: total, TotalPages: totalPages}
}

// TableState is the user's current table configuration.
type TableState struct {
	Filter   Filter    `json:"filter"`
	Sort     SortState `json:"sort"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// NewTableState starts on page 1, unfiltered and unsorted.
func NewTableState(pageSize int) TableState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return TableState{Page: 1, PageSize: pageSize}
}

// SetFilter replaces the filter and returns to page 1.
func (t TableState) SetFilter(f Filter) TableState {
	t.Filter = f
	t.Page = 1
	return t
}

// ToggleSort advances the sort state for column.
func (t TableState) ToggleSort(column Column) TableState {
	t.Sort = t.Sort.Toggle(column)
	return t
}

// SetPage moves to page.
func (t TableState) SetPage(page int) TableState {
	t.Page = page
	return t
}

// HeaderState describes one column header: its indicator and what a click would do.
type HeaderState struct {
	Column        Column    `json:"column"`
	Direction     Direction `json:"direction"`
	NextDirection Direction `json:"next_direction"`
}

// TableView is the rendered table.
type TableView struct {
	State     TableState    `json:"state"`
	FilterKey string        `json:"filter_key"`
	Headers   []HeaderState `json:"headers"`
	Page
}

// Render filters, sorts and paginates readings for t.
func (t TableState) Render(readings []NormalizedReading) TableView {
	rows := Sort(t.Filter.Apply(readings), t.Sort)
	page := Paginate(rows, t.Page, t.PageSize)

	headers := make([]HeaderState, 0, len(Columns))
	for _, c := range Columns {
		headers = append(headers, HeaderState{
			Column:        c,
			Direction:     t.Sort.DirectionFor(c),
			NextDirection: t.Sort.Toggle(c).DirectionFor(c),
		})
	}

	t.Page = page.Page
	t.PageSize = page.PageSize
	return TableView{State: t, FilterKey: t.Filter.Key(), Headers: headers, Page: page}
}
