// Package fastaio is the reference implementation of the §6 FastSeq
// external interface: a FASTA reader built on github.com/shenwei356/bio,
// the same sequence library the rest of this codebase's sequence-aware
// tools (lexicmap and friends) read FASTA/FASTQ with. It is not part of
// the core -- recon and profile only ever see the profile.FastSeq
// interface, never this package's concrete type.
package fastaio

import (
	"io"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/BurntSushi/profalign/internal/errs"
)

// Seq adapts a shenwei356/bio/seqio/fastx record to profile.FastSeq.
type Seq struct {
	name string
	seq  string
}

func (s Seq) Name() string { return s.name }
func (s Seq) Seq() string  { return s.seq }

// Tokens maps every character of the sequence to an index in [0,A)
// against alphabet, ignoring case. Any character not in the alphabet,
// ambiguity codes included, is an InputError.
func (s Seq) Tokens(alphabet string) ([]int, error) {
	out := make([]int, len(s.seq))
	for i := 0; i < len(s.seq); i++ {
		idx := indexFold(alphabet, s.seq[i])
		if idx < 0 {
			return nil, errs.Inputf("sequence %q: character %q at position %d is not in alphabet %q",
				s.name, s.seq[i], i, alphabet)
		}
		out[i] = idx
	}
	return out, nil
}

func indexFold(alphabet string, c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c || toUpper(alphabet[i]) == toUpper(c) {
			return i
		}
	}
	return -1
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// ReadAll reads every record in the FASTA file at path and returns it
// as a name-keyed map of FastSeq, the shape recon.Reconstruct's leaves
// parameter expects. t is the sequence alphabet class shenwei356/bio
// expects (seq.DNA, seq.RNA, or seq.Protein); it only affects the
// reader's own validation, not the tokens fastaio.Seq later produces.
func ReadAll(path string, t *seq.Alphabet) (map[string]Seq, error) {
	if t == nil {
		t = seq.Unlimit
	}
	reader, err := fastx.NewReader(t, path, "")
	if err != nil {
		return nil, errs.Wrap(err, "opening FASTA file "+path)
	}

	out := make(map[string]Seq)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, "reading FASTA file "+path)
		}
		name := string(record.Name)
		if _, dup := out[name]; dup {
			return nil, errs.Inputf("duplicate sequence name %q in %s", name, path)
		}
		out[name] = Seq{name: name, seq: string(record.Seq.Seq)}
	}
	return out, nil
}
