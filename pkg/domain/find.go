package domain

import "fmt"

// SortField orders results by one field
type SortField struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// SortSpec is an ordered list of sort fields; earlier fields take precedence
type SortSpec []SortField

// FindOptions controls ordering and windowing of a find
type FindOptions struct {
	Sort  SortSpec `json:"sort,omitempty"`
	Skip  int64    `json:"skip,omitempty"`
	Limit int64    `json:"limit,omitempty"` // 0 means no limit
}

// Validate checks the options for nonsensical values
func (o FindOptions) Validate() error {
	if o.Skip < 0 {
		return fmt.Errorf("%w: skip cannot be negative", ErrBadFilter)
	}
	if o.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrBadFilter)
	}
	for _, f := range o.Sort {
		if f.Field == "" {
			return fmt.Errorf("%w: sort field cannot be empty", ErrBadFilter)
		}
		if f.Direction != Ascending && f.Direction != Descending {
			return fmt.Errorf("%w: sort direction of %q must be 1 or -1", ErrBadFilter, f.Field)
		}
	}
	return nil
}
