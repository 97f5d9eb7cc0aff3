package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEducation     Category = "Education"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryShopping      Category = "Shopping"
	CategoryPersonal      Category = "Personal"
	CategoryEmergency     Category = "Emergency"
	CategoryOther         Category = "Other"
)

type (
	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a persisted spending record. ID is assigned by the store
	// on creation and is empty on a pending record.
	Expense struct {
		ID          string
		Description string
		Amount      Money
		Category    Category
		Date        Date
		Notes       string
		CreatedAt   time.Time
	}

	// Draft is user input for a new expense, before the store assigns an ID.
	Draft struct {
		Description string
		Amount      Money
		Category    Category
		Date        Date
		Notes       string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrEmptyDescription = errors.New("empty description")
)

var categories = []Category{
	CategoryFood, CategoryTransport, CategoryEducation, CategoryEntertainment,
	CategoryHealth, CategoryShopping, CategoryPersonal, CategoryEmergency,
	CategoryOther,
}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, known := range categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", ErrInvalidCategory
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses the wire format used throughout the API (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the wire format (2006-01-02).
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// SameDay reports whether two dates fall on the same calendar day.
func (d Date) SameDay(other Date) bool {
	return d.Year() == other.Year() && d.YearDay() == other.YearDay()
}

// PeriodKey returns the month bucket the date belongs to ("2024-03").
func (d Date) PeriodKey() string {
	return d.Format("2006-01")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate reports all invalid fields of a draft at once, so the caller can
// surface a single message naming everything the user has to fix.
func (d Draft) Validate() error {
	var fields []string
	if len(strings.TrimSpace(d.Description)) == 0 || len(d.Description) > 200 {
		fields = append(fields, "description")
	}
	if d.Amount.Validate() != nil {
		fields = append(fields, "amount")
	}
	if !d.Category.Valid() {
		fields = append(fields, "category")
	}
	if d.Date.Validate() != nil {
		fields = append(fields, "date")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

func (e Expense) Validate() error {
	return Draft{
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Date:        e.Date,
		Notes:       e.Notes,
	}.Validate()
}

// ValidationError names the user-input fields that failed validation.
// It is always recoverable; no state changes when it is returned.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	seen := map[string]struct{}{}
	var out []string
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return &ValidationError{Fields: out}
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
