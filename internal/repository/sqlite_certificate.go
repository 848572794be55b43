package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
)

const certificateColumns = `id, user_id, training_id, certificate_number, status, score,
		issued_by, issued_at, expires_at, revoked_at, revoke_reason`

// SQLiteCertificateRepo implements CertificateRepo using a SQLite database.
type SQLiteCertificateRepo struct {
	db db.DBTX
}

func NewSQLiteCertificateRepo(db db.DBTX) *SQLiteCertificateRepo {
	return &SQLiteCertificateRepo{db: db}
}

func (r *SQLiteCertificateRepo) Create(ctx context.Context, c *domain.Certificate) error {
	query := `INSERT INTO certificates (` + certificateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.UserID,
		c.TrainingID,
		c.CertificateNumber,
		string(c.Status),
		nullableIntToValue(c.Score),
		c.IssuedBy,
		timeToString(c.IssuedAt),
		nullableTimeToString(c.ExpiresAt),
		nullableTimeToString(c.RevokedAt),
		c.RevokeReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("certificate number %s: %w", c.CertificateNumber, ErrConflict)
		}
		return fmt.Errorf("inserting certificate: %w", err)
	}
	return nil
}

func (r *SQLiteCertificateRepo) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	return r.getOne(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = ?`, id)
}

func (r *SQLiteCertificateRepo) GetByNumber(ctx context.Context, number string) (*domain.Certificate, error) {
	return r.getOne(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE certificate_number = ?`, number)
}

func (r *SQLiteCertificateRepo) List(ctx context.Context, filter CertificateFilter) ([]domain.Certificate, error) {
	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.TrainingID != "" {
		where = append(where, "training_id = ?")
		args = append(args, filter.TrainingID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + certificateColumns + ` FROM certificates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY issued_at DESC, id"
	return r.query(ctx, query, args...)
}

func (r *SQLiteCertificateRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at, id`
	return r.query(ctx, query, timeToString(now))
}

// Update persists status changes. Identity, holder and issue data are
// immutable once issued.
func (r *SQLiteCertificateRepo) Update(ctx context.Context, c *domain.Certificate) error {
	res, err := r.db.ExecContext(ctx, `UPDATE certificates
		SET status = ?, revoked_at = ?, revoke_reason = ?
		WHERE id = ?`,
		string(c.Status), nullableTimeToString(c.RevokedAt), c.RevokeReason, c.ID)
	if err != nil {
		return fmt.Errorf("updating certificate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("certificate %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteCertificateRepo) getOne(ctx context.Context, query string, key string) (*domain.Certificate, error) {
	c, err := scanCertificate(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("certificate %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning certificate: %w", err)
	}
	return c, nil
}

func (r *SQLiteCertificateRepo) query(ctx context.Context, query string, args ...any) ([]domain.Certificate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing certificates: %w", err)
	}
	defer rows.Close()

	var certs []domain.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning certificate row: %w", err)
		}
		certs = append(certs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating certificates: %w", err)
	}
	return certs, nil
}

func scanCertificate(row rowScanner) (*domain.Certificate, error) {
	var c domain.Certificate
	var status, issuedAt string
	var score sql.NullInt64
	var expiresAt, revokedAt sql.NullString

	err := row.Scan(&c.ID, &c.UserID, &c.TrainingID, &c.CertificateNumber, &status, &score,
		&c.IssuedBy, &issuedAt, &expiresAt, &revokedAt, &c.RevokeReason)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CertificateStatus(status)
	if score.Valid {
		v := int(score.Int64)
		c.Score = &v
	}
	c.ExpiresAt = parseNullableTime(expiresAt)
	c.RevokedAt = parseNullableTime(revokedAt)
	if c.IssuedAt, err = parseTime(issuedAt, "issued_at"); err != nil {
		return nil, err
	}
	return &c, nil
}
