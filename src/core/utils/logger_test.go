package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelFilter(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  int
	}{
		{name: "debug 全部输出", level: "debug", want: 4},
		{name: "info 过滤 debug", level: "info", want: 3},
		{name: "大写也能识别", level: "WARN", want: 2},
		{name: "error 只输出错误", level: "error", want: 1},
		{name: "未知级别按 info", level: "verbose", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, tt.level)
			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if buf.Len() == 0 {
				lines = nil
			}
			assert.Len(t, lines, tt.want)
		})
	}
}

func TestLoggerEntryFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "debug").WithTag("sequence")

	logger.Warn("decode failed", errors.New("boom"))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, WarnLevel, entry.Level)
	assert.Equal(t, "sequence", entry.Tag)
	assert.Equal(t, "decode failed", entry.Message)
	assert.Equal(t, "boom", entry.Fields)
}
