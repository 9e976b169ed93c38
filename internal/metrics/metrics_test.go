package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultSuccess, Result(nil))
	assert.Equal(t, ResultFailure, Result(errors.New("x")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(AuthEvents.WithLabelValues("sign-in", ResultFailure))
	AuthEvents.WithLabelValues("sign-in", ResultFailure).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AuthEvents.WithLabelValues("sign-in", ResultFailure)))

	ObserveSince("avatar", time.Now().Add(-time.Second))
	assert.Equal(t, 1, testutil.CollectAndCount(ImageProcessing))
}
