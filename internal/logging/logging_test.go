package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsAndDisable(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetLevel("info")
		Enable()
	})

	SetLevel("warn")
	Infof("[proc] hidden %d", 1)
	Warnf("[lifecycle] pid=%d ignored graceful stop", 42)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "pid=42 ignored graceful stop")

	buf.Reset()
	SetLevel("debug")
	Debugf("[inject] scheme %s", "v11")
	assert.Contains(t, buf.String(), "scheme v11")

	buf.Reset()
	Disable()
	Errorf("[engine] swallowed")
	assert.Empty(t, buf.String())
}
