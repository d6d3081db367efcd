package jobsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eduva/eduva/core/user"
)

type auditorStub struct {
	report  user.AuditReport
	err     error
	repairs []bool
}

func (a *auditorStub) Audit(_ context.Context, repair bool) (user.AuditReport, error) {
	a.repairs = append(a.repairs, repair)
	return a.report, a.err
}

type logRecorder struct {
	levels []string
}

func (l *logRecorder) Debug(string, ...interface{}) { l.levels = append(l.levels, "debug") }
func (l *logRecorder) Info(string, ...interface{})  { l.levels = append(l.levels, "info") }
func (l *logRecorder) Warn(string, ...interface{})  { l.levels = append(l.levels, "warn") }
func (l *logRecorder) Error(string, ...interface{}) { l.levels = append(l.levels, "error") }
func (l *logRecorder) Fatal(string, ...interface{}) { l.levels = append(l.levels, "fatal") }

func TestAuditJob_Run(t *testing.T) {
	tests := []struct {
		name      string
		auditor   *auditorStub
		repair    bool
		wantLevel string
	}{
		{name: "clean", auditor: &auditorStub{report: user.AuditReport{Accounts: 3}}, wantLevel: "info"},
		{name: "drift", auditor: &auditorStub{report: user.AuditReport{Accounts: 3, Drifted: 1}}, repair: true, wantLevel: "warn"},
		{name: "missing profile", auditor: &auditorStub{report: user.AuditReport{Accounts: 3, MissingProfiles: 1}}, wantLevel: "warn"},
		{name: "failure", auditor: &auditorStub{err: errors.New("db down")}, wantLevel: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(logRecorder)
			NewAuditJob(tt.auditor, tt.repair, logger).Run()

			assert.Equal(t, []bool{tt.repair}, tt.auditor.repairs)
			assert.Equal(t, []string{tt.wantLevel}, logger.levels)
		})
	}
}

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler()
	job := NewAuditJob(&auditorStub{}, false, new(logRecorder))

	assert.NoError(t, s.Add("", job), "empty spec disables the job")
	assert.NoError(t, s.Add("@daily", job))
	assert.Error(t, s.Add("every tuesday", job))
}
