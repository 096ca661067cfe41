package main

import (
	"sort"
	"strings"

	"github.com/BurntSushi/profalign/alignpath"
)

// renderFasta writes gapped row sequences out in ascending row (node)
// index order. Nodes are numbered in post-order, so every ancestor
// follows its descendants and leaves and ancestors are interleaved.
func renderFasta(gapped map[alignpath.Row]string, names map[alignpath.Row]string) string {
	rows := make([]alignpath.Row, 0, len(gapped))
	for r := range gapped {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

	var b strings.Builder
	for _, r := range rows {
		name := names[r]
		if name == "" {
			name = "node"
		}
		b.WriteString(">")
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(gapped[r])
		b.WriteString("\n")
	}
	return b.String()
}
