package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_Quiet(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown", zap.String("file", "a.cpp"))
	_ = l.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "a.cpp")
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)
	l.Debug("allocated name", zap.String("name", "O100000000"))
	_ = l.Sync()

	assert.Contains(t, buf.String(), "allocated name")
	assert.Contains(t, buf.String(), "O100000000")
}

func TestNamed(t *testing.T) {
	assert.NotNil(t, Named(nil, "batch"))

	var buf bytes.Buffer
	Named(New(&buf, true), "batch").Debug("hello")
	assert.Contains(t, buf.String(), "batch")
}
