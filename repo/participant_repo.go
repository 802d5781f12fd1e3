package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/census-api/db"
	"github.com/Skryldev/census-api/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// ParticipantRepository interface, for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

// ParticipantRepository defines the contract for participant persistence.
// Every method issues exactly one statement.
type ParticipantRepository interface {
	Insert(ctx context.Context, params models.CreateParticipantParams) error
	List(ctx context.Context) ([]models.Participant, error)
	ListSummaries(ctx context.Context) ([]models.ParticipantSummary, error)
	GetDetails(ctx context.Context, email string) (*models.ParticipantDetails, error)
	GetWork(ctx context.Context, email string) (*models.Work, error)
	GetHome(ctx context.Context, email string) (*models.Home, error)
	Update(ctx context.Context, params models.UpdateParticipantParams) error
	Delete(ctx context.Context, email string) error
}

// ─────────────────────────────────────────────────────────────────────────────
// participantRepo, concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

type participantRepo struct {
	q db.Querier
}

// NewParticipantRepo returns a ParticipantRepository backed by q.
// q can be a *db.DB or *db.Tx; both satisfy db.Querier.
func NewParticipantRepo(q db.Querier) ParticipantRepository {
	return &participantRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants. Placeholders are '?' and rebound per dialect by package db.
// ─────────────────────────────────────────────────────────────────────────────

const (
	sqlInsertParticipant = `
		INSERT INTO participants
		       (email, firstname, lastname, dob, companyname, salary, currency, country, city)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlListParticipants = `
		SELECT email, firstname, lastname, dob, companyname, salary, currency, country, city
		FROM   participants
		ORDER  BY email`

	sqlListSummaries = `
		SELECT firstname, lastname, email
		FROM   participants
		ORDER  BY email`

	sqlGetDetails = `
		SELECT firstname, lastname, email, dob
		FROM   participants
		WHERE  email = ?`

	sqlGetWork = `
		SELECT companyname, salary, currency
		FROM   participants
		WHERE  email = ?`

	sqlGetHome = `
		SELECT country, city
		FROM   participants
		WHERE  email = ?`

	sqlUpdateParticipant = `
		UPDATE participants
		SET    firstname = ?, lastname = ?, dob = ?, companyname = ?, salary = ?,
		       currency = ?, country = ?, city = ?
		WHERE  email = ?`

	sqlDeleteParticipant = `
		DELETE FROM participants WHERE email = ?`
)

// ─────────────────────────────────────────────────────────────────────────────
// Insert
// ─────────────────────────────────────────────────────────────────────────────

// Insert writes all nine columns in one statement.
// Returns db.ErrDuplicateKey when the email already exists.
func (r *participantRepo) Insert(ctx context.Context, p models.CreateParticipantParams) error {
	if _, err := r.q.Exec(ctx, sqlInsertParticipant, insertArgs(p)...); err != nil {
		return fmt.Errorf("repo/participant: insert: %w", err)
	}
	return nil
}

func insertArgs(p models.CreateParticipantParams) []any {
	return []any{
		p.Email, p.Firstname, p.Lastname, p.Dob,
		p.Work.CompanyName, p.Work.Salary, p.Work.Currency,
		p.Home.Country, p.Home.City,
	}
}

// BatchInsert inserts every participant in a single transaction.
// All rows are inserted or none are.
func BatchInsert(ctx context.Context, d *db.DB, params []models.CreateParticipantParams) error {
	if len(params) == 0 {
		return nil
	}
	if err := db.BatchExec(d, ctx, sqlInsertParticipant, params, insertArgs); err != nil {
		return fmt.Errorf("repo/participant: batch insert: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// List
// ─────────────────────────────────────────────────────────────────────────────

// List returns every participant ordered by email. The slice is never nil.
func (r *participantRepo) List(ctx context.Context) ([]models.Participant, error) {
	rows, err := r.q.Query(ctx, sqlListParticipants)
	if err != nil {
		return nil, fmt.Errorf("repo/participant: list: %w", err)
	}
	defer rows.Close()

	out := make([]models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(
			&p.Email, &p.Firstname, &p.Lastname, &p.Dob,
			&p.CompanyName, &p.Salary, &p.Currency, &p.Country, &p.City,
		); err != nil {
			return nil, fmt.Errorf("repo/participant: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo/participant: list: %w", err)
	}
	return out, nil
}

// ListSummaries returns firstname, lastname and email of every participant
// ordered by email. The slice is never nil.
func (r *participantRepo) ListSummaries(ctx context.Context) ([]models.ParticipantSummary, error) {
	rows, err := r.q.Query(ctx, sqlListSummaries)
	if err != nil {
		return nil, fmt.Errorf("repo/participant: list summaries: %w", err)
	}
	defer rows.Close()

	out := make([]models.ParticipantSummary, 0)
	for rows.Next() {
		var s models.ParticipantSummary
		if err := rows.Scan(&s.Firstname, &s.Lastname, &s.Email); err != nil {
			return nil, fmt.Errorf("repo/participant: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo/participant: list summaries: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Single-participant views
// ─────────────────────────────────────────────────────────────────────────────

// GetDetails returns the personal view of one participant.
// Returns db.ErrNotFound when no record matches.
func (r *participantRepo) GetDetails(ctx context.Context, email string) (*models.ParticipantDetails, error) {
	d := &models.ParticipantDetails{}
	row := r.q.QueryRow(ctx, sqlGetDetails, email)
	if err := row.Scan(&d.Firstname, &d.Lastname, &d.Email, &d.Dob); err != nil {
		return nil, fmt.Errorf("repo/participant: details: %w", err)
	}
	return d, nil
}

// GetWork returns the employment view of one participant.
// Returns db.ErrNotFound when no record matches.
func (r *participantRepo) GetWork(ctx context.Context, email string) (*models.Work, error) {
	w := &models.Work{}
	row := r.q.QueryRow(ctx, sqlGetWork, email)
	if err := row.Scan(&w.CompanyName, &w.Salary, &w.Currency); err != nil {
		return nil, fmt.Errorf("repo/participant: work: %w", err)
	}
	return w, nil
}

// GetHome returns the residence view of one participant.
// Returns db.ErrNotFound when no record matches.
func (r *participantRepo) GetHome(ctx context.Context, email string) (*models.Home, error) {
	h := &models.Home{}
	row := r.q.QueryRow(ctx, sqlGetHome, email)
	if err := row.Scan(&h.Country, &h.City); err != nil {
		return nil, fmt.Errorf("repo/participant: home: %w", err)
	}
	return h, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update / Delete
// ─────────────────────────────────────────────────────────────────────────────

// Update replaces every mutable column of the participant identified by
// p.Email. Returns db.ErrNotFound if no row matched.
func (r *participantRepo) Update(ctx context.Context, p models.UpdateParticipantParams) error {
	res, err := r.q.Exec(ctx, sqlUpdateParticipant,
		p.Firstname, p.Lastname, p.Dob,
		p.Work.CompanyName, p.Work.Salary, p.Work.Currency,
		p.Home.Country, p.Home.City,
		p.Email,
	)
	if err != nil {
		return fmt.Errorf("repo/participant: update: %w", err)
	}
	return requireAffected(res.RowsAffected())
}

// Delete removes a participant by email.
// Returns db.ErrNotFound if no row was deleted.
func (r *participantRepo) Delete(ctx context.Context, email string) error {
	res, err := r.q.Exec(ctx, sqlDeleteParticipant, email)
	if err != nil {
		return fmt.Errorf("repo/participant: delete: %w", err)
	}
	return requireAffected(res.RowsAffected())
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("repo/participant: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repo/participant: %w", db.ErrNotFound)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Compile-time interface assertion
// ─────────────────────────────────────────────────────────────────────────────

var _ ParticipantRepository = (*participantRepo)(nil)
