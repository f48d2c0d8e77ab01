package logging_test

import (
	"testing"

	"github.com/slackmgr/s3ingest/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = logging.New("verbose")
	require.Error(t, err)
}

func TestFieldsAreAttached(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.Wrap(zap.New(core))

	logger.WithField("queue_name", "events").
		WithFields(map[string]any{"worker_id": 2}).
		Infof("received %d", 1)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "received 1", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "events", fields["queue_name"])
	assert.EqualValues(t, 2, fields["worker_id"])
}

func TestLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	logger := logging.Wrap(zap.New(core))

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Errorf("error %s", "x")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "error x", entries[1].Message)
}
