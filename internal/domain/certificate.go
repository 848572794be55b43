package domain

import (
	"fmt"
	"time"
)

type Certificate struct {
	ID                string
	UserID            string
	TrainingID        string
	CertificateNumber string
	Status            CertificateStatus
	Score             *int
	IssuedBy          string
	IssuedAt          time.Time
	ExpiresAt         *time.Time // nil means the certificate never expires
	RevokedAt         *time.Time
	RevokeReason      string
}

// IsValidAt reports whether the certificate counts towards compliance at now.
func (c *Certificate) IsValidAt(now time.Time) bool {
	if c.Status != CertificateActive {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// Revoke withdraws an active or expired certificate.
func (c *Certificate) Revoke(reason string, now time.Time) error {
	if c.Status == CertificateRevoked {
		return fmt.Errorf("%w: certificate %s already revoked", ErrInvalidTransition, c.CertificateNumber)
	}
	c.Status = CertificateRevoked
	c.RevokedAt = &now
	c.RevokeReason = reason
	return nil
}

// Expire marks an active certificate whose expiry has passed as expired.
func (c *Certificate) Expire(now time.Time) error {
	if c.Status != CertificateActive {
		return fmt.Errorf("%w: only active certificates can expire, %s is %s",
			ErrInvalidTransition, c.CertificateNumber, c.Status)
	}
	if c.ExpiresAt == nil || c.ExpiresAt.After(now) {
		return fmt.Errorf("%w: certificate %s has not reached its expiry", ErrInvalidTransition, c.CertificateNumber)
	}
	c.Status = CertificateExpired
	return nil
}
