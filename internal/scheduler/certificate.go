package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/google/uuid"
)

// validityMonths maps each finite validity period onto calendar months.
var validityMonths = map[domain.ValidityPeriod]int{
	domain.Validity6Months: 6,
	domain.Validity1Year:   12,
	domain.Validity2Years:  24,
	domain.Validity3Years:  36,
}

// ExpiryFor computes the expiry of a certificate issued at issuedAt.
// ValidityNever yields nil.
func ExpiryFor(period domain.ValidityPeriod, issuedAt time.Time) (*time.Time, error) {
	if period == domain.ValidityNever {
		return nil, nil
	}
	months, ok := validityMonths[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown validity period %q", domain.ErrValidation, period)
	}
	exp := AddMonthsClamped(issuedAt, months)
	return &exp, nil
}

// FormatCertificateNumber renders CERT-YYYYMMDD-XXXXXXXX using the issue
// date and the first eight hex digits of token.
func FormatCertificateNumber(issuedAt time.Time, token string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(token, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "CERT-" + issuedAt.UTC().Format("20060102") + "-" + suffix
}

// NewCertificateNumber issues a number with a random suffix. Uniqueness is
// enforced again by the store.
func NewCertificateNumber(issuedAt time.Time) string {
	return FormatCertificateNumber(issuedAt, uuid.New().String())
}
