package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_NoColorForBuffers(t *testing.T) {
	// Given: a writer backed by a buffer, not a terminal
	var buf bytes.Buffer
	w := New(&buf)

	// When: writing all message kinds
	w.Success("indexed")
	w.Warning("slow disk")
	w.Error("broken")
	w.Dim("details")

	// Then: no ANSI escapes leak into the output
	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "ok indexed")
	assert.Contains(t, out, "warn slow disk")
	assert.Contains(t, out, "error broken")
}

func TestWriter_Indent(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Indent("line one\nline two\n")

	assert.Equal(t, "  line one\n  line two\n", buf.String())
}

func TestWriter_Formatting(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Successf("indexed %d documents", 12)
	w.Printf("%d/%d\n", 3, 4)

	assert.Contains(t, buf.String(), "indexed 12 documents")
	assert.Contains(t, buf.String(), "3/4")
}
