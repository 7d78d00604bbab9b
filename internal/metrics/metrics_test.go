package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_IncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(FieldWritesCaptured)

	NewRecorder().FieldWriteCaptured()

	assert.Equal(t, before+1, testutil.ToFloat64(FieldWritesCaptured))
}

func TestSetActiveTrackedContainers(t *testing.T) {
	SetActiveTrackedContainers(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(ActiveTrackedContainers))
}
