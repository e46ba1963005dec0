package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes), "formatSize(%d)", tt.bytes)
	}
}

func TestSplitParentAndName(t *testing.T) {
	tests := []struct {
		path       string
		wantParent string
		wantName   string
	}{
		{"/foo/bar/baz", "/foo/bar", "baz"},
		{"/report", "/", "report"},
		{"report", "/", "report"},
		{"foo/bar", "/foo", "bar"},
		{"/foo/bar/", "/foo", "bar"},
	}

	for _, tt := range tests {
		parent, name := splitParentAndName(tt.path)
		assert.Equal(t, tt.wantParent, parent, "parent of %q", tt.path)
		assert.Equal(t, tt.wantName, name, "name of %q", tt.path)
	}
}

func TestPrintTable(t *testing.T) {
	var buf strings.Builder

	printTable(&buf, []string{"NAME", "KIND"}, [][]string{
		{"Quarterly Report", "Document"},
		{"Notes", "Collection"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)

	// The second column starts at the same offset in every row.
	col := strings.Index(lines[0], "KIND")
	assert.Equal(t, col, strings.Index(lines[1], "Document"))
	assert.Equal(t, col, strings.Index(lines[2], "Collection"))
}
