package scheduler

import (
	"testing"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiryFor(t *testing.T) {
	issued := date(2024, 8, 31)

	cases := []struct {
		period domain.ValidityPeriod
		want   *string
	}{
		{domain.Validity6Months, strPtr("2025-02-28")},
		{domain.Validity1Year, strPtr("2025-08-31")},
		{domain.Validity2Years, strPtr("2026-08-31")},
		{domain.Validity3Years, strPtr("2027-08-31")},
		{domain.ValidityNever, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			got, err := ExpiryFor(tc.period, issued)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, got.Format("2006-01-02"))
		})
	}
}

func TestExpiryFor_Unknown(t *testing.T) {
	_, err := ExpiryFor(domain.ValidityPeriod("5_years"), date(2024, 1, 1))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = ExpiryFor("", date(2024, 1, 1))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestFormatCertificateNumber(t *testing.T) {
	got := FormatCertificateNumber(date(2024, 3, 5), "abcdef12-3456-7890-abcd-ef1234567890")
	assert.Equal(t, "CERT-20240305-ABCDEF12", got)

	short := FormatCertificateNumber(date(2024, 3, 5), "ab-cd")
	assert.Equal(t, "CERT-20240305-ABCD", short)
}

func TestNewCertificateNumber_Shape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n := NewCertificateNumber(date(2025, 1, 2))
		assert.Regexp(t, `^CERT-20250102-[0-9A-F]{8}$`, n)
		assert.False(t, seen[n], "duplicate certificate number %s", n)
		seen[n] = true
	}
}

func strPtr(s string) *string { return &s }
