// Package validation checks participant payloads before they reach the
// database. Checks run in a fixed order and the first failure is reported.
package validation

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Skryldev/census-api/models"
)

// Reasons reported to clients. They are part of the HTTP contract.
const (
	ReasonNotObject       = "Request body must be a JSON object"
	ReasonEmail           = "Invalid or missing email"
	ReasonFirstname       = "Missing firstname"
	ReasonLastname        = "Missing lastname"
	ReasonWork            = "Missing work details"
	ReasonWorkCompanyName = "Missing work companyname"
	ReasonWorkSalary      = "Salary must be a number"
	ReasonWorkCurrency    = "Missing work currency"
	ReasonHome            = "Missing home details"
	ReasonHomeCountry     = "Missing home country"
	ReasonHomeCity        = "Missing home city"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether s has the local@domain.tld shape.
func IsEmail(s string) bool { return emailPattern.MatchString(s) }

// Options tunes the validator.
type Options struct {
	// DateSeparators lists the accepted dob separators. Defaults to "-".
	DateSeparators []string
}

// Error is a validation failure. Reason is safe to return to clients.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Validator runs the ordered participant checks.
type Validator struct {
	seps      []string
	dobRe     *regexp.Regexp
	dobReason string
	checks    []check
}

type check func(obj map[string]any) string

// New returns a Validator for opts.
func New(opts Options) *Validator {
	seps := opts.DateSeparators
	if len(seps) == 0 {
		seps = []string{"-"}
	}

	quoted := make([]string, len(seps))
	forms := make([]string, len(seps))
	for i, s := range seps {
		quoted[i] = regexp.QuoteMeta(s)
		forms[i] = "YYYY" + s + "MM" + s + "DD"
	}
	// Go's regexp has no backreferences, so each separator gets its own branch.
	branches := make([]string, len(quoted))
	for i, q := range quoted {
		branches[i] = `\d{4}` + q + `\d{2}` + q + `\d{2}`
	}

	v := &Validator{
		seps:      seps,
		dobRe:     regexp.MustCompile(`^(?:` + strings.Join(branches, "|") + `)$`),
		dobReason: "Invalid or missing dob. Use " + strings.Join(forms, " or "),
	}
	v.checks = []check{
		checkEmail,
		requireTruthy("firstname", ReasonFirstname),
		requireTruthy("lastname", ReasonLastname),
		v.checkDob,
		checkWork,
		checkHome,
	}
	return v
}

// Validate returns the first failing reason for payload, or "" when it is
// acceptable. payload is the result of decoding a JSON document into any.
func (v *Validator) Validate(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ReasonNotObject
	}
	for _, c := range v.checks {
		if reason := c(obj); reason != "" {
			return reason
		}
	}
	return ""
}

// DobReason is the message reported for a bad dob.
func (v *Validator) DobReason() string { return v.dobReason }

// ParseCreate validates payload and converts it into insert parameters.
func (v *Validator) ParseCreate(payload any) (models.CreateParticipantParams, error) {
	if reason := v.Validate(payload); reason != "" {
		return models.CreateParticipantParams{}, &Error{Reason: reason}
	}
	obj := payload.(map[string]any)
	work := obj["work"].(map[string]any)
	home := obj["home"].(map[string]any)

	dob, err := models.ParseDate(v.normalizeDate(obj["dob"].(string)))
	if err != nil {
		return models.CreateParticipantParams{}, &Error{Reason: v.dobReason}
	}
	return models.CreateParticipantParams{
		Email:     obj["email"].(string),
		Firstname: text(obj["firstname"]),
		Lastname:  text(obj["lastname"]),
		Dob:       dob,
		Work: models.Work{
			CompanyName: text(work["companyname"]),
			Salary:      number(work["salary"]),
			Currency:    text(work["currency"]),
		},
		Home: models.Home{
			Country: text(home["country"]),
			City:    text(home["city"]),
		},
	}, nil
}

// ParseUpdate validates payload for the participant identified by email.
// The given email replaces any email in the payload.
func (v *Validator) ParseUpdate(email string, payload any) (models.UpdateParticipantParams, error) {
	if obj, ok := payload.(map[string]any); ok {
		merged := make(map[string]any, len(obj)+1)
		for k, val := range obj {
			merged[k] = val
		}
		merged["email"] = email
		payload = merged
	}
	p, err := v.ParseCreate(payload)
	if err != nil {
		return models.UpdateParticipantParams{}, err
	}
	return models.UpdateParticipantParams(p), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Checks
// ─────────────────────────────────────────────────────────────────────────────

func checkEmail(obj map[string]any) string {
	s, ok := obj["email"].(string)
	if !ok || !IsEmail(s) {
		return ReasonEmail
	}
	return ""
}

func requireTruthy(field, reason string) check {
	return func(obj map[string]any) string {
		if !truthy(obj[field]) {
			return reason
		}
		return ""
	}
}

func (v *Validator) checkDob(obj map[string]any) string {
	s, ok := obj["dob"].(string)
	if !ok || !v.dobRe.MatchString(s) {
		return v.dobReason
	}
	if _, err := models.ParseDate(v.normalizeDate(s)); err != nil {
		return v.dobReason
	}
	return ""
}

func checkWork(obj map[string]any) string {
	work, ok := obj["work"].(map[string]any)
	if !ok {
		return ReasonWork
	}
	if !truthy(work["companyname"]) {
		return ReasonWorkCompanyName
	}
	if !isNumber(work["salary"]) {
		return ReasonWorkSalary
	}
	if !truthy(work["currency"]) {
		return ReasonWorkCurrency
	}
	return ""
}

func checkHome(obj map[string]any) string {
	home, ok := obj["home"].(map[string]any)
	if !ok {
		return ReasonHome
	}
	if !truthy(home["country"]) {
		return ReasonHomeCountry
	}
	if !truthy(home["city"]) {
		return ReasonHomeCity
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON value helpers
// ─────────────────────────────────────────────────────────────────────────────

// truthy mirrors JSON truthiness: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	}
	return true
}

func isNumber(v any) bool {
	switch x := v.(type) {
	case float64:
		return true
	case json.Number:
		_, err := x.Float64()
		return err == nil
	}
	return false
}

func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	}
	return 0
}

// text renders a truthy scalar as stored text. Non-string values are
// encoded as JSON.
func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (v *Validator) normalizeDate(s string) string {
	for _, sep := range v.seps {
		if sep != "-" {
			s = strings.ReplaceAll(s, sep, "-")
		}
	}
	return s
}
