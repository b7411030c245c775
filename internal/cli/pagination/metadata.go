package pagination

// Meta describes the window returned by Apply.
type Meta struct {
	TotalItems int  `json:"total_items"`
	Returned   int  `json:"returned"`
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit,omitempty"`
	HasNext    bool `json:"has_next"`
}

// NewMeta builds the metadata for a window of returned items out of total.
func NewMeta(p Params, total, returned int) Meta {
	return Meta{
		TotalItems: total,
		Returned:   returned,
		Offset:     p.Offset,
		Limit:      p.Limit,
		HasNext:    p.Offset+returned < total,
	}
}
