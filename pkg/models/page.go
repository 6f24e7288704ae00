package models

// PageRequest carries pagination and pruning parameters for a search call.
type PageRequest struct {
	// Page is 1-indexed.
	Page  int `json:"page"`
	Limit int `json:"limit"`
	// MinRatioToBest, when > 0, drops results scoring below this fraction
	// of the top fused score. RRF scores are relative, not calibrated, so
	// pruning is expressed as a ratio rather than an absolute threshold.
	MinRatioToBest float64 `json:"min_ratio_to_best,omitempty"`
}

// Offset returns the zero-based item offset of the requested page.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Page is one page of ranked search results plus pagination metadata.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPage assembles pagination metadata around a slice of items.
func NewPage[T any](items []T, total, page, limit int) *Page[T] {
	totalPages := 0
	if total > 0 && limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
