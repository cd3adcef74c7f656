package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Granularity is the size of a reporting period.
type Granularity string

const (
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// Slots returns how many periods of this granularity tile one year
// (4 for week, since weeks only partition a single month).
func (g Granularity) Slots() int {
	switch g {
	case Week:
		return 4
	case Month:
		return 12
	case Quarter:
		return 4
	case Year:
		return 1
	}
	return 0
}

// ParseGranularity parses a report type. Only month, quarter and year are
// accepted as request types.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Month, Quarter, Year:
		return g, nil
	case "":
		return "", &ValidationError{Field: "type", Message: "type is required"}
	}
	return "", &ValidationError{Field: "type", Message: fmt.Sprintf("type must be one of month, quarter, year (got %q)", s)}
}

// Spec describes one reporting period. Month and Quarter are 1-based and
// only meaningful for their own granularity.
type Spec struct {
	Granularity Granularity `json:"type"`
	Year        int         `json:"year"`
	Month       int         `json:"month,omitempty"`
	Quarter     int         `json:"quarter,omitempty"`
}

// Years outside [MinYear, MaxYear] are rejected. Every store backend can
// represent the instants of this range; the sqlite store keeps unix
// nanoseconds, which end in 2262.
const (
	MinYear = 1900
	MaxYear = 2200
)

// IsZero reports whether no period was requested at all.
func (s Spec) IsZero() bool {
	return s.Granularity == "" && s.Year == 0 && s.Month == 0 && s.Quarter == 0
}

// Validate checks that the fields required by the granularity are present
// and in range.
func (s Spec) Validate() error {
	if _, err := ParseGranularity(string(s.Granularity)); err != nil {
		return err
	}
	if s.Year == 0 {
		return &ValidationError{Field: "year", Message: "year is required"}
	}
	if s.Year < MinYear || s.Year > MaxYear {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear)}
	}
	switch s.Granularity {
	case Month:
		if s.Month < 1 || s.Month > 12 {
			return &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
		}
	case Quarter:
		if s.Quarter < 1 || s.Quarter > 4 {
			return &ValidationError{Field: "quarter", Message: "quarter must be between 1 and 4"}
		}
	}
	return nil
}

// Slot is the zero-based index of the period within its year: month-1,
// quarter-1, or 0 for a whole year.
func (s Spec) Slot() int {
	switch s.Granularity {
	case Month:
		return s.Month - 1
	case Quarter:
		return s.Quarter - 1
	}
	return 0
}

// Label is the cohort label: "Mar 24" for a month, "2024-Q1" for a quarter,
// "2024" for a year.
func (s Spec) Label() string {
	switch s.Granularity {
	case Month:
		return time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC).Format("Jan 06")
	case Quarter:
		return fmt.Sprintf("%d-Q%d", s.Year, s.Quarter)
	case Year:
		return strconv.Itoa(s.Year)
	}
	return "Rolling"
}

// Token renders the spec in the comparison token format parsed by ParseToken.
func (s Spec) Token() string {
	switch s.Granularity {
	case Month:
		return fmt.Sprintf("%d-%d", s.Month, s.Year)
	case Quarter:
		return fmt.Sprintf("%d-%d", s.Quarter, s.Year)
	}
	return strconv.Itoa(s.Year)
}

// ParseToken parses a comparison period token of the given granularity:
// "3-2024" (month-year), "2-2024" or "Q2-2024" (quarter-year), "2024" (year).
func ParseToken(g Granularity, token string) (Spec, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Spec{}, &ValidationError{Field: "period", Message: "period is required"}
	}

	if g == Year {
		year, err := strconv.Atoi(token)
		if err != nil {
			return Spec{}, &ValidationError{Field: "period", Message: fmt.Sprintf("invalid year period %q", token)}
		}
		spec := Spec{Granularity: Year, Year: year}
		return spec, spec.Validate()
	}

	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return Spec{}, &ValidationError{Field: "period", Message: fmt.Sprintf("invalid %s period %q, expected <%s>-<year>", g, token, g)}
	}
	lead := parts[0]
	if g == Quarter {
		lead = strings.TrimPrefix(strings.ToUpper(lead), "Q")
	}
	n, err := strconv.Atoi(lead)
	if err != nil {
		return Spec{}, &ValidationError{Field: "period", Message: fmt.Sprintf("invalid %s in period %q", g, token)}
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Spec{}, &ValidationError{Field: "period", Message: fmt.Sprintf("invalid year in period %q", token)}
	}

	spec := Spec{Granularity: g, Year: year}
	switch g {
	case Month:
		spec.Month = n
	case Quarter:
		spec.Quarter = n
	default:
		return Spec{}, &ValidationError{Field: "type", Message: fmt.Sprintf("type must be one of month, quarter, year (got %q)", g)}
	}
	return spec, spec.Validate()
}

// ValidationError is an input error reported to the caller before any
// aggregation runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var monthLabels = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthLabels returns "Jan".."Dec".
func MonthLabels() []string {
	return append([]string(nil), monthLabels...)
}

// QuarterLabels returns "Q1".."Q4".
func QuarterLabels() []string {
	return []string{"Q1", "Q2", "Q3", "Q4"}
}

// WeekLabels returns "Week 1".."Week 4".
func WeekLabels() []string {
	return []string{"Week 1", "Week 2", "Week 3", "Week 4"}
}
