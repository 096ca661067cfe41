package recon

import (
	"strings"

	"github.com/BurntSushi/profalign/alignpath"
	"github.com/BurntSushi/profalign/profile"
)

const wildcardChar = 'X'
const gapChar = '-'

// Alignment is the materialised output of §4.9 step 3: a root AlignPath
// together with the ungapped residues of every row it covers (leaf rows
// get their real sequence; internal rows get wildcard placeholders of
// the correct length, since no concrete ancestral sequence was
// predicted).
type Alignment struct {
	Path     alignpath.AlignPath
	Ungapped map[alignpath.Row]string
	RowName  map[alignpath.Row]string
}

// MakeAlignment builds the Alignment for the subtree rooted at root,
// mirroring the original's Reconstructor::makeAlignment: every
// descendant row gets its residues (real for leaves, wildcard
// placeholders for internal nodes) against the traced path.
func MakeAlignment(t Tree, leaves map[string]profile.FastSeq, path alignpath.AlignPath, root int) *Alignment {
	var nodes []int
	collectSubtree(t, root, &nodes)

	a := &Alignment{
		Path:     path,
		Ungapped: make(map[alignpath.Row]string, len(nodes)),
		RowName:  make(map[alignpath.Row]string, len(nodes)),
	}
	for _, n := range nodes {
		row := alignpath.Row(n)
		a.RowName[row] = t.NodeName(n)
		if t.IsLeaf(n) {
			a.Ungapped[row] = leaves[t.NodeName(n)].Seq()
			continue
		}
		a.Ungapped[row] = strings.Repeat(string(wildcardChar), alignpath.ResiduesInRowOf(path, row))
	}
	return a
}

func collectSubtree(t Tree, node int, out *[]int) {
	*out = append(*out, node)
	if t.IsLeaf(node) {
		return
	}
	l, r := t.Children(node)
	collectSubtree(t, l, out)
	collectSubtree(t, r, out)
}

// Gapped renders every row in a as a full gapped string against a's own
// Path, one character per alignment column: the row's next ungapped
// residue where the path marks a residue column, gapChar elsewhere.
func (a *Alignment) Gapped() map[alignpath.Row]string {
	cols := alignpath.Columns(a.Path)
	out := make(map[alignpath.Row]string, len(a.Ungapped))
	for row, seq := range a.Ungapped {
		bits := a.Path[row]
		var b strings.Builder
		b.Grow(cols)
		pos := 0
		for c := 0; c < cols; c++ {
			if c < len(bits) && bits[c] {
				if pos < len(seq) {
					b.WriteByte(seq[pos])
				} else {
					b.WriteByte(wildcardChar)
				}
				pos++
			} else {
				b.WriteByte(gapChar)
			}
		}
		out[row] = b.String()
	}
	return out
}
