package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCert(expiresAt *time.Time) *Certificate {
	return &Certificate{
		ID:                "cert-1",
		UserID:            "u1",
		TrainingID:        "T1",
		CertificateNumber: "CERT-20250101-ABCDEF12",
		Status:            CertificateActive,
		IssuedAt:          testNow.AddDate(-1, 0, 0),
		ExpiresAt:         expiresAt,
	}
}

func TestCertificate_IsValidAt(t *testing.T) {
	future := testNow.AddDate(0, 1, 0)
	past := testNow.AddDate(0, -1, 0)

	cases := []struct {
		name  string
		cert  *Certificate
		valid bool
	}{
		{"active without expiry", activeCert(nil), true},
		{"active future expiry", activeCert(&future), true},
		{"active past expiry", activeCert(&past), false},
		{"expiry exactly now", activeCert(&testNow), false},
		{"revoked", func() *Certificate {
			c := activeCert(&future)
			c.Status = CertificateRevoked
			return c
		}(), false},
		{"expired status", func() *Certificate {
			c := activeCert(nil)
			c.Status = CertificateExpired
			return c
		}(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.cert.IsValidAt(testNow))
		})
	}
}

func TestCertificate_Revoke(t *testing.T) {
	c := activeCert(nil)
	require.NoError(t, c.Revoke("falsified record", testNow))
	assert.Equal(t, CertificateRevoked, c.Status)
	assert.Equal(t, "falsified record", c.RevokeReason)
	require.NotNil(t, c.RevokedAt)
	assert.False(t, c.IsValidAt(testNow))

	require.ErrorIs(t, c.Revoke("again", testNow), ErrInvalidTransition)
}

func TestCertificate_Expire(t *testing.T) {
	past := testNow.AddDate(0, 0, -1)
	c := activeCert(&past)
	require.NoError(t, c.Expire(testNow))
	assert.Equal(t, CertificateExpired, c.Status)

	future := testNow.AddDate(0, 0, 1)
	notYet := activeCert(&future)
	require.ErrorIs(t, notYet.Expire(testNow), ErrInvalidTransition)
	assert.Equal(t, CertificateActive, notYet.Status)

	never := activeCert(nil)
	require.ErrorIs(t, never.Expire(testNow), ErrInvalidTransition)

	revoked := activeCert(&past)
	revoked.Status = CertificateRevoked
	require.ErrorIs(t, revoked.Expire(testNow), ErrInvalidTransition)
}

func TestMatrixEntry_Matches(t *testing.T) {
	scoped := MatrixEntry{Role: "operator", Department: "welding"}
	assert.True(t, scoped.Matches("operator", "welding"))
	assert.False(t, scoped.Matches("operator", "paint"))
	assert.False(t, scoped.Matches("supervisor", "welding"))

	wildcard := MatrixEntry{Role: "operator", Department: AllDepartments}
	assert.True(t, wildcard.Matches("operator", "paint"))
	assert.False(t, wildcard.Matches("supervisor", "paint"))
}

func TestComplianceRecord_IsCompliant(t *testing.T) {
	r := ComplianceRecord{ComplianceScore: 100}
	assert.True(t, r.IsCompliant())

	r.MissingTrainings = []RequiredTraining{{TrainingID: "T2"}}
	assert.False(t, r.IsCompliant())
}
