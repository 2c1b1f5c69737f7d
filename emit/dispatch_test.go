package emit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ome-lang/ome/emit"
)

func TestSortDispatchEntriesOrdersByAscendingTag(t *testing.T) {
	entries := []emit.DispatchEntry{
		{Tag: 30, Label: "c"},
		{Tag: 10, Label: "a"},
		{Tag: 20, Label: "b"},
	}

	sorted := emit.SortDispatchEntries(entries)

	assert.Equal(t, []emit.DispatchEntry{{10, "a"}, {20, "b"}, {30, "c"}}, sorted)
}

func TestSortDispatchEntriesDoesNotMutateInput(t *testing.T) {
	entries := []emit.DispatchEntry{{Tag: 2, Label: "b"}, {Tag: 1, Label: "a"}}
	_ = emit.SortDispatchEntries(entries)
	assert.Equal(t, 2, entries[0].Tag, "input slice order must be untouched")
}
