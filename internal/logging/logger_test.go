package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true).With("component", "test")

	log.Info(context.Background(), "hello", "user_id", "u1")
	log.Debug(context.Background(), "dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "test", entry["component"])
}

func TestNew_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug(context.Background(), "details", "k", 1)

	assert.Contains(t, buf.String(), "details")
	assert.Contains(t, buf.String(), "k=1")
}
