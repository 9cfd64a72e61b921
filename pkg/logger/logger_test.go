package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureGlobal points the global logger at a buffer for the duration of t.
func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	out, formatter, level := L.Logger.Out, L.Logger.Formatter, L.Logger.GetLevel()
	SetLogOutput(&buf)
	t.Cleanup(func() {
		L.Logger.SetOutput(out)
		L.Logger.Formatter = formatter
		L.Logger.SetLevel(level)
	})
	return &buf
}

func TestNewLogger(t *testing.T) {
	l := newLogger()

	formatter, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger(t *testing.T) {
	t.Run("falls back to the global logger", func(t *testing.T) {
		entry := G(context.Background())
		assert.Equal(t, L.Logger, entry.Logger)
	})

	t.Run("returns the context logger", func(t *testing.T) {
		custom := logrus.NewEntry(logrus.New()).WithField("test", "value")
		ctx := WithLogger(context.Background(), custom)

		entry := G(ctx)
		assert.Equal(t, custom.Logger, entry.Logger)
		assert.Equal(t, "value", entry.Data["test"])
	})
}

func TestWithDocument(t *testing.T) {
	ctx := WithDocument(context.Background(), "api/SKILL.md")
	ctx = WithFields(ctx, logrus.Fields{FieldSection: "Examples", FieldLines: 42})

	entry := G(ctx)
	assert.Equal(t, "api/SKILL.md", entry.Data[FieldPath])
	assert.Equal(t, "Examples", entry.Data[FieldSection])
	assert.Equal(t, 42, entry.Data[FieldLines])
}

func TestJSONOutput(t *testing.T) {
	buf := captureGlobal(t)
	SetLogFormat("json")
	require.NoError(t, SetLogLevel("info"))

	ctx := WithDocument(context.Background(), "meta/SKILL.md")
	G(ctx).WithField(FieldLines, 137).Info("document refactored")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "document refactored", out["message"])
	assert.Equal(t, "info", out["logLevel"])
	assert.Equal(t, "meta/SKILL.md", out[FieldPath])
	assert.Equal(t, float64(137), out[FieldLines])
	assert.Contains(t, out, "timestamp")
}

func TestSetLogLevel(t *testing.T) {
	buf := captureGlobal(t)

	tests := []struct {
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{level: "debug", want: logrus.DebugLevel},
		{level: "warn", want: logrus.WarnLevel},
		{level: "ERROR", want: logrus.ErrorLevel},
		{level: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), `invalid log level "verbose"`)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, L.Logger.GetLevel())
		})
	}

	require.NoError(t, SetLogLevel("warn"))
	G(context.Background()).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestConfigure(t *testing.T) {
	captureGlobal(t)

	require.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, L.Logger.Formatter)

	require.NoError(t, Configure("info", "fmt"))
	assert.IsType(t, &logrus.TextFormatter{}, L.Logger.Formatter)

	assert.Error(t, Configure("nope", "json"))
}
