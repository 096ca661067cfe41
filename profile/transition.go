package profile

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/BurntSushi/profalign/alignpath"
)

// jsonState and jsonTrans mirror the wire schema of §6: object
// {name, meta?, alphSize, state: [ {n, name?, meta?, path?, seqPos?,
// lpAbsorb?, trans: [{to,lpTrans,path?}, ...]}, ... ]}.
type jsonProfile struct {
	Name     string            `json:"name,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	AlphSize int               `json:"alphSize"`
	State    []jsonState       `json:"state"`
}

type jsonState struct {
	N        int               `json:"n"`
	Name     string            `json:"name,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	Path     jsonAlignPath     `json:"path,omitempty"`
	SeqPos   []jsonSeqPos      `json:"seqPos,omitempty"`
	LpAbsorb [][]float64       `json:"lpAbsorb,omitempty"`
	Trans    []jsonTrans       `json:"trans"`
}

type jsonSeqPos [2]int

type jsonTrans struct {
	To      int           `json:"to"`
	LpTrans float64       `json:"lpTrans"`
	Path    jsonAlignPath `json:"path,omitempty"`
}

// jsonAlignPath is [ [row, "wildcard-for-residue-dash-for-gap"], ... ],
// per §6's wire format.
type jsonAlignPath [][2]interface{}

func toJSONAlignPath(p alignpath.AlignPath, wildcard byte) jsonAlignPath {
	if len(p) == 0 {
		return nil
	}
	rows := make([]alignpath.Row, 0, len(p))
	for r := range p {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

	out := make(jsonAlignPath, 0, len(rows))
	for _, r := range rows {
		bits := p[r]
		buf := make([]byte, len(bits))
		for i, bit := range bits {
			if bit {
				buf[i] = wildcard
			} else {
				buf[i] = gapChar
			}
		}
		out = append(out, [2]interface{}{int(r), string(buf)})
	}
	return out
}

func fromJSONAlignPath(j jsonAlignPath, wildcard byte) alignpath.AlignPath {
	if len(j) == 0 {
		return nil
	}
	out := make(alignpath.AlignPath, len(j))
	for _, entry := range j {
		row := alignpath.Row(int(entry[0].(float64)))
		s := entry[1].(string)
		bits := make(alignpath.BitSequence, len(s))
		for i := 0; i < len(s); i++ {
			bits[i] = s[i] != gapChar
		}
		out[row] = bits
	}
	return out
}

// ToJSON renders p in the wire format of §6.
func (p *Profile) ToJSON() ([]byte, error) {
	jp := jsonProfile{
		Name:     p.Name,
		Meta:     p.Meta,
		AlphSize: p.AlphSize,
	}
	jp.State = make([]jsonState, len(p.State))
	for i := range p.State {
		s := &p.State[i]
		js := jsonState{N: i, Name: s.Name, Meta: s.Meta}
		js.Path = toJSONAlignPath(s.AlignPath, wildcardChar)
		if len(s.SeqCoords) > 0 {
			rows := make([]alignpath.Row, 0, len(s.SeqCoords))
			for r := range s.SeqCoords {
				rows = append(rows, r)
			}
			sort.Slice(rows, func(a, b int) bool { return rows[a] < rows[b] })
			for _, r := range rows {
				js.SeqPos = append(js.SeqPos, jsonSeqPos{int(r), s.SeqCoords[r]})
			}
		}
		if !s.IsNull() {
			js.LpAbsorb = s.LpAbsorb
		}

		outSet := map[TransIndex]bool{}
		var outIdx []TransIndex
		for _, ti := range s.NullOut {
			if !outSet[ti] {
				outSet[ti] = true
				outIdx = append(outIdx, ti)
			}
		}
		for _, ti := range s.AbsorbOut {
			if !outSet[ti] {
				outSet[ti] = true
				outIdx = append(outIdx, ti)
			}
		}
		sort.Slice(outIdx, func(a, b int) bool { return outIdx[a] < outIdx[b] })
		for _, ti := range outIdx {
			t := &p.Trans[ti]
			js.Trans = append(js.Trans, jsonTrans{
				To:      int(t.Dest),
				LpTrans: t.LpTrans,
				Path:    toJSONAlignPath(t.AlignPath, wildcardChar),
			})
		}
		jp.State[i] = js
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", " ")
	if err := enc.Encode(jp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromJSON parses the wire format of §6 back into a Profile. The
// resulting profile's transitions are rebuilt consistently with its own
// arena (In/NullOut/AbsorbOut), independent of the serialised trans
// list's order.
func FromJSON(data []byte) (*Profile, error) {
	var jp jsonProfile
	if err := json.Unmarshal(data, &jp); err != nil {
		return nil, err
	}

	p := &Profile{
		Name:     jp.Name,
		Meta:     jp.Meta,
		AlphSize: jp.AlphSize,
		State:    make([]State, len(jp.State)),
	}
	for i, js := range jp.State {
		s := &p.State[i]
		s.Name = js.Name
		s.Meta = js.Meta
		s.AlignPath = fromJSONAlignPath(js.Path, wildcardChar)
		if len(js.SeqPos) > 0 {
			s.SeqCoords = make(SeqCoords, len(js.SeqPos))
			for _, sp := range js.SeqPos {
				s.SeqCoords[alignpath.Row(sp[0])] = sp[1]
			}
		}
		if len(js.LpAbsorb) > 0 {
			s.LpAbsorb = js.LpAbsorb
			if p.Components == 0 {
				p.Components = len(js.LpAbsorb)
			}
		}
	}

	for i, js := range jp.State {
		for _, jt := range js.Trans {
			ti := TransIndex(len(p.Trans))
			path := fromJSONAlignPath(jt.Path, wildcardChar)
			p.Trans = append(p.Trans, Transition{
				Src:       StateIndex(i),
				Dest:      StateIndex(jt.To),
				LpTrans:   jt.LpTrans,
				AlignPath: path,
			})
			dest := &p.State[jt.To]
			dest.In = append(dest.In, ti)
			// A transition is null-outgoing or absorb-outgoing according
			// to whether its destination is a null or absorbing state,
			// matching the nullOut/absorbOut partition built during
			// profile construction elsewhere in this package.
			if dest.IsNull() {
				p.State[i].NullOut = append(p.State[i].NullOut, ti)
			} else {
				p.State[i].AbsorbOut = append(p.State[i].AbsorbOut, ti)
			}
		}
	}
	return p, nil
}
