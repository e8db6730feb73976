package popup

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-ocr/src/logutil"
)

func TestShowLogsSingleSanitizedLine(t *testing.T) {
	var buf bytes.Buffer
	logutil.SetOutput(&buf)
	prev := logutil.Logger().GetLevel()
	logutil.Logger().SetLevel(logrus.DebugLevel)
	t.Cleanup(func() { logutil.Logger().SetLevel(prev) })

	// No fyne app registered, so the result only goes to the log.
	require.NoError(t, Show("first line\nsecond line"))

	out := buf.String()
	assert.Contains(t, out, "Popup with 22 characters")
	assert.NotContains(t, out, "popup.go")
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2} `, line)
	}
}
