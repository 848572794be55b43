package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var exportNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func readBook(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteTasks(t *testing.T) {
	parent := "tpl-1"
	done := exportNow.AddDate(0, 0, -4)
	tasks := []*domain.Task{
		{
			ID: "t-1", Title: "Renew boiler permit", Type: domain.TaskPermitRenewal, Priority: domain.PriorityHigh,
			Status: domain.TaskInProgress, Progress: 40, Assignees: []string{"ana", "ben"},
			StartDate: exportNow.AddDate(0, 0, -10), DueDate: exportNow.AddDate(0, 0, -1),
			EstimatedHours: 8, ActualHours: 12.5,
			Blockers: []domain.Blocker{{ID: "b1"}, {ID: "b2", Resolved: true}},
		},
		{
			ID: "t-2", Title: "Monthly audit prep", Type: domain.TaskAuditPrep, Priority: domain.PriorityLow,
			Status: domain.TaskCompleted, Progress: 100, ParentTaskID: &parent,
			StartDate: exportNow.AddDate(0, 0, -30), DueDate: exportNow.AddDate(0, 0, -2), CompletedAt: &done,
		},
	}
	analytics := &service.TaskAnalytics{
		Total:      2,
		ByStatus:   map[domain.TaskStatus]int{domain.TaskInProgress: 1, domain.TaskCompleted: 1},
		ByPriority: map[domain.Priority]int{domain.PriorityHigh: 1, domain.PriorityLow: 1},
		ByType:     map[domain.TaskType]int{domain.TaskPermitRenewal: 1, domain.TaskAuditPrep: 1},
		Overdue:    1, CompletionRate: 50, OnTimeRate: 100, GeneratedAt: exportNow,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTasks(&buf, tasks, analytics, exportNow))

	f := readBook(t, &buf)
	assert.Equal(t, []string{SheetTasks, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetTasks)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, taskHeaders, rows[0])
	assert.Equal(t, []string{
		"t-1", "Renew boiler permit", "permit_renewal", "high", "in_progress", "40", "ana, ben",
		"2025-06-05", "2025-06-14", "", "8", "12.5", "yes", "", "1",
	}, rows[1])
	assert.Equal(t, "no", rows[2][12], "completed tasks are never overdue")
	assert.Equal(t, "tpl-1", rows[2][13])
	assert.Equal(t, "2025-06-11", rows[2][9])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Completion rate %", "50"}, summary[3])
	assert.Contains(t, summary, []string{"Status completed", "1"})
	assert.Contains(t, summary, []string{"Type audit_prep", "1"})
}

func TestWriteTasks_NoAnalytics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTasks(&buf, nil, nil, exportNow))

	f := readBook(t, &buf)
	assert.Equal(t, []string{SheetTasks}, f.GetSheetList())
	rows, err := f.GetRows(SheetTasks)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestWriteComplianceReport(t *testing.T) {
	report := &service.ComplianceReport{
		Records: []domain.ComplianceRecord{
			{
				UserID: "ana", Role: "operator", Department: "welding", ComplianceScore: 100,
				CompletedTrainings: []domain.CompletedTraining{{RequiredTraining: domain.RequiredTraining{TrainingID: "T1"}}},
			},
			{
				UserID: "ben", Role: "operator", Department: "welding", ComplianceScore: 0,
				MissingTrainings: []domain.RequiredTraining{{TrainingID: "T1", TrainingName: "Forklift safety", RequiredBy: "onboarding"}},
			},
		},
		AverageScore: 50,
		Compliant:    1,
		GeneratedAt:  exportNow,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteComplianceReport(&buf, report, map[string]string{"ana": "Ana Lima"}))

	f := readBook(t, &buf)
	rows, err := f.GetRows(SheetCompliance)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "Ana Lima", "operator", "welding", "100", "yes", "T1"}, rows[1])
	assert.Equal(t, []string{"ben", "", "operator", "welding", "0", "no", "", "T1"}, rows[2])
	assert.Equal(t, []string{"Average", "", "", "", "50"}, rows[4])
	assert.Equal(t, []string{"Compliant", "", "", "", "1/2"}, rows[5])

	missing, err := f.GetRows(SheetMissing)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, []string{"ben", "operator", "welding", "T1", "Forklift safety", "onboarding"}, missing[1])
}

func TestWriteCertificates(t *testing.T) {
	expires := exportNow.AddDate(1, 0, 0)
	score := 92
	certs := []domain.Certificate{
		{CertificateNumber: "CERT-20250615-0A1B2C3D", UserID: "ana", TrainingID: "T1",
			Status: domain.CertificateActive, Score: &score, IssuedAt: exportNow, ExpiresAt: &expires, IssuedBy: "trainer"},
		{CertificateNumber: "CERT-20250615-FFFF0000", UserID: "ben", TrainingID: "T2",
			Status: domain.CertificateRevoked, IssuedAt: exportNow, IssuedBy: "trainer", RevokeReason: "exam irregularity"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCertificates(&buf, certs))

	rows, err := readBook(t, &buf).GetRows(SheetCerts)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"CERT-20250615-0A1B2C3D", "ana", "T1", "active", "92", "2025-06-15", "2026-06-15", "trainer"}, rows[1])
	assert.Equal(t, "never", rows[2][6])
	assert.Equal(t, "exam irregularity", rows[2][8])
}
