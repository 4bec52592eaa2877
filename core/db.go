package core

import (
	"fmt"
	"strings"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a comma separated ordering param ("-created_at,title").
// Fields that are not in allowed are reported as a ValidationError.
func ParseOrdering(param string, allowed ...string) ([]DBOrdering, error) {
	if param = CleanString(param); param == "" {
		return nil, nil
	}

	var orderings []DBOrdering
	for _, field := range strings.Split(param, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !contains(allowed, field) {
			return nil, NewValidationError(nil, FieldError{Field: "ordering", Error: fmt.Sprintf("cannot order by %q", field)})
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings, nil
}

// Pagination holds a 1-based page request.
type Pagination struct {
	Page    int
	PerPage int
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// TotalPages returns how many pages total items span.
func (p Pagination) TotalPages(total int) int {
	if p.PerPage <= 0 {
		return 0
	}
	return (total + p.PerPage - 1) / p.PerPage
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
