package cliutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusf_SuppressedWhenQuiet(t *testing.T) {
	var buf bytes.Buffer

	Statusf(&buf, true, "hello %s\n", "world")
	assert.Empty(t, buf.String())

	Statusf(&buf, false, "hello %s\n", "world")
	assert.Equal(t, "hello world\n", buf.String())
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(-1))
	assert.NotEmpty(t, FormatSize(0))
	assert.NotEmpty(t, FormatSize(1_500_000))
}

func TestFormatTime_OmitsYearForCurrentYear(t *testing.T) {
	now := time.Now()
	assert.NotContains(t, FormatTime(now), now.AddDate(-1, 0, 0).Format("2006"))
}

func TestPrintTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer

	PrintTable(&buf, []string{"name", "size"}, [][]string{
		{"a.txt", "1"},
		{"longer-name.txt", "23"},
	})

	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "longer-name.txt")
}
