package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Participant represents a row in the "participants" table.
// Fields map 1-to-1 with columns and JSON keys equal the column names.
type Participant struct {
	Email       string  `json:"email"`
	Firstname   string  `json:"firstname"`
	Lastname    string  `json:"lastname"`
	Dob         Date    `json:"dob"`
	CompanyName string  `json:"companyname"`
	Salary      float64 `json:"salary"`
	Currency    string  `json:"currency"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
}

// Work is the employment subset of a participant.
type Work struct {
	CompanyName string  `json:"companyname"`
	Salary      float64 `json:"salary"`
	Currency    string  `json:"currency"`
}

// Home is the residence subset of a participant.
type Home struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// ParticipantSummary is one entry of the personal-details listing.
type ParticipantSummary struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// ParticipantDetails is the personal view of a single participant.
type ParticipantDetails struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Dob       Date   `json:"dob"`
}

// CreateParticipantParams holds every field written on insert.
// Keeping input types separate from the row model makes the accepted
// payload explicit.
type CreateParticipantParams struct {
	Email     string
	Firstname string
	Lastname  string
	Dob       Date
	Work      Work
	Home      Home
}

// UpdateParticipantParams replaces all mutable columns of the participant
// identified by Email. The email itself is never changed.
type UpdateParticipantParams struct {
	Email     string
	Firstname string
	Lastname  string
	Dob       Date
	Work      Work
	Home      Home
}

// ─────────────────────────────────────────────────────────────────────────────
// Date
// ─────────────────────────────────────────────────────────────────────────────

// DateLayout is the canonical textual form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
type Date struct {
	t time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s in YYYY-MM-DD form and rejects days that do not exist.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("models: invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string { return d.t.Format(DateLayout) }

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Value implements driver.Valuer. Dates are bound as text, which every
// supported driver accepts for DATE columns.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns. MySQL (parseTime=true),
// PostgreSQL and SQLite return time.Time; text protocols return bytes or
// strings, optionally followed by a time part.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case []byte:
		return d.scanText(string(v))
	case string:
		return d.scanText(v)
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("models: cannot scan %T into Date", src)
}

func (d *Date) scanText(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
