package metricsvc

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduva/eduva/core/user"
)

func TestSink_Emit(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	sink.Emit(ctx, user.NewEvent(user.CredentialMigrated, 42, user.RoleTeacher, ""))
	sink.Emit(ctx, user.NewEvent(user.CredentialMigrated, 43, user.RoleTeacher, ""))
	sink.Emit(ctx, user.NewEvent(user.VerificationFailed, 7, user.RoleStudent, ""))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.events.WithLabelValues("credential_migrated", "teacher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues("verification_failed", "student")))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.events.WithLabelValues("credential_migrated", "admin")))

	_, err = NewSink(reg)
	assert.Error(t, err, "registering twice")
}
