package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderColumnsFollowHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	payload, err := exporter.Render(Dataset{
		Headers: []string{"Student", "Overall"},
		Rows: []map[string]string{
			{"Overall": "Approved", "Student": "Maria Santos"},
			{"Student": "Jose Cruz"},
		},
	})
	require.NoError(t, err)

	text := string(payload)
	assert.True(t, strings.HasPrefix(text, "\xef\xbb\xbf"), "output carries a UTF-8 BOM")
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(text, "\xef\xbb\xbf")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Overall", lines[0])
	assert.Equal(t, "Maria Santos,Approved", lines[1])
	assert.Equal(t, "Jose Cruz,", lines[2])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{Rows: []map[string]string{{"a": "b"}}})
	assert.Error(t, err)
}
