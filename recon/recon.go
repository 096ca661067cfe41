// Package recon implements the post-order ProgressiveReconstructor of
// §4.9: it drives package dp's ForwardMatrix/BackwardMatrix pairwise
// over a rooted binary tree, handling the guide-envelope band-doubling
// retry policy, and materialises the root alignment once every
// internal node has a profile.
package recon

import (
	"math/rand"

	"github.com/BurntSushi/profalign/alignpath"
	"github.com/BurntSushi/profalign/dp"
	"github.com/BurntSushi/profalign/internal/errs"
	"github.com/BurntSushi/profalign/numeric"
	"github.com/BurntSushi/profalign/profile"
	"github.com/BurntSushi/profalign/ratemodel"
)

// Tree is the external collaborator of §6: a binary tree with branch
// lengths, leaf-name lookup, and index-based node access. Node indices
// double as alignpath.Row values throughout this package, per
// profile's own row-is-tree-node-index convention.
type Tree interface {
	Nodes() int
	IsLeaf(n int) bool
	Children(n int) (left, right int)
	BranchLength(n int) float64
	NodeName(n int) string
	Root() int
}

// Config collects the tunable knobs of §9/§4.9: the profiling strategy,
// the posterior-pruning threshold, and the initial guide-envelope band
// width. With the zero value, each non-root internal node's profile is a
// single stochastic SampleProfile draw, no posterior pruning is applied,
// and band-doubling starts from a zero-width band (InitialMaxDist 0)
// whenever a guide is given.
type Config struct {
	// Strategy is passed through to dp.ForwardMatrix/BackwardMatrix's
	// profile-construction calls for every non-root internal node.
	Strategy dp.ProfilingStrategy
	// UsePosteriorsForProfile selects BackwardMatrix.PostProbProfile
	// over ForwardMatrix.SampleProfile/BestProfile for internal
	// (non-root) nodes, mirroring the original's usePosteriorsForProfile
	// flag.
	UsePosteriorsForProfile bool
	// MinPostProb is the posterior-pruning threshold passed to
	// PostProbProfile when UsePosteriorsForProfile is set.
	MinPostProb float64
	// ProfileSamples is the sample count passed to SampleProfile when
	// UsePosteriorsForProfile is unset.
	ProfileSamples int
	// ProfileNodeLimit bounds SampleProfile's state union (accepted for
	// interface compatibility; see dp.ForwardMatrix.SampleProfile's own
	// documented scope reduction).
	ProfileNodeLimit int
	// InitialMaxDist is the starting guide-envelope half-width (§4.9.b);
	// negative means unconstrained (no envelope at all).
	InitialMaxDist int
	// AccumulateCounts runs a BackwardMatrix at the root even when
	// UsePosteriorsForProfile is false, solely to populate EigenCounts.
	AccumulateCounts bool
}

// Reconstructor runs §4.9's post-order procedure over one tree/rate
// model pair. It is safe to reuse across multiple calls to Reconstruct
// with different trees, as long as RateModel stays fixed.
type Reconstructor struct {
	Rate   ratemodel.RateModel
	Config Config
	RNG    *rand.Rand
}

// New builds a Reconstructor. rng may be nil if Config.UsePosteriorsForProfile
// is true (posterior profiling never samples).
func New(rate ratemodel.RateModel, cfg Config, rng *rand.Rand) *Reconstructor {
	return &Reconstructor{Rate: rate, Config: cfg, RNG: rng}
}

// Result is everything §4.9 step 3 and §6 promise the caller once a
// tree has been reconstructed: the root profile, its Viterbi alignment
// path over every leaf and internal row, the materialised root
// Alignment, and (if Config.AccumulateCounts or posterior profiling
// touched the root) the expected sufficient statistics of §4.7.
type Result struct {
	RootProfile   *profile.Profile
	RootAlignPath alignpath.AlignPath
	Alignment     *Alignment
	Counts        *dp.EigenCounts
	// LpFinalForward is the root ForwardMatrix's own LpEnd(), exposed so
	// callers can cross-check it against RootProfile's recomputed
	// CalcSumPathAbsorbProbs value, mirroring §4.9's own diagnostic log
	// line.
	LpFinalForward float64
}

// closestLeafInfo holds, for every node, the leaf below it at the
// smallest total branch-length distance (computeClosestLeaf picks the
// child minimising its own closest-leaf distance plus its branch
// length) -- the pivot row §4.9 uses to bound each internal node's
// guide envelope.
type closestLeafInfo struct {
	leaf []int
	dist []float64
}

func computeClosestLeaf(t Tree) *closestLeafInfo {
	n := t.Nodes()
	info := &closestLeafInfo{leaf: make([]int, n), dist: make([]float64, n)}
	// Post-order by increasing node index assumes the tree is indexed so
	// that every child has a lower index than its parent, the same
	// convention profile.Profile's transitions rely on (src < dest).
	for node := 0; node < n; node++ {
		if t.IsLeaf(node) {
			info.leaf[node] = node
			info.dist[node] = 0
			continue
		}
		l, r := t.Children(node)
		dl := info.dist[l] + t.BranchLength(l)
		dr := info.dist[r] + t.BranchLength(r)
		if dl <= dr {
			info.leaf[node] = info.leaf[l]
			info.dist[node] = dl
		} else {
			info.leaf[node] = info.leaf[r]
			info.dist[node] = dr
		}
	}
	return info
}

// Reconstruct runs the post-order procedure of §4.9 over tree, whose
// leaves are named by name (FastSeq.Name()) and looked up against
// leaves. guide may be nil, meaning no envelope constrains the DP (all
// internal nodes run with maxDist == -1 from the start).
func (r *Reconstructor) Reconstruct(t Tree, leaves map[string]profile.FastSeq, guide alignpath.AlignPath) (*Result, error) {
	if t.Nodes() == 0 {
		return nil, errs.Inputf("tree has no nodes")
	}
	closest := computeClosestLeaf(t)
	prof := make([]*profile.Profile, t.Nodes())
	rootProb := insertionDists(r.Rate)
	root := t.Root()

	var lpFinalFwd float64
	var result Result

	for node := 0; node < t.Nodes(); node++ {
		if t.IsLeaf(node) {
			seq, ok := leaves[t.NodeName(node)]
			if !ok {
				return nil, errs.Inputf("no sequence for leaf %q (node %d)", t.NodeName(node), node)
			}
			p, err := profile.NewLeaf(r.Rate.NumComponents(), r.Rate.Alphabet(), seq, alignpath.Row(node))
			if err != nil {
				return nil, errs.Wrap(err, "building leaf profile for "+t.NodeName(node))
			}
			prof[node] = p.AddReadyStates()
			continue
		}

		lChild, rChild := t.Children(node)
		lProf, rProf := prof[lChild], prof[rChild]
		lProbs := ratemodel.NewProbModel(r.Rate, t.BranchLength(lChild))
		rProbs := ratemodel.NewProbModel(r.Rate, t.BranchLength(rChild))
		hmm := ratemodel.NewPairHMM(lProbs, rProbs, rootProb)

		forward, _, err := r.runWithBandDoubling(lProf, rProf, lProbs, rProbs, hmm, guide, closest.leaf[lChild], closest.leaf[rChild])
		if err != nil {
			return nil, errs.Wrap(err, "aligning children of node "+t.NodeName(node))
		}

		isRoot := node == root
		var backward *dp.BackwardMatrix
		if isRoot && (r.Config.AccumulateCounts || r.Config.UsePosteriorsForProfile) {
			backward = dp.NewBackwardMatrix(forward)
		} else if !isRoot && r.Config.UsePosteriorsForProfile {
			backward = dp.NewBackwardMatrix(forward)
		}

		if isRoot {
			result.RootAlignPath = forward.BestAlignPath()
			prof[node] = forward.BestProfile(r.Config.Strategy)
			lpFinalFwd = forward.LpEnd()
			if r.Config.AccumulateCounts && backward != nil {
				result.Counts = backward.GetCounts()
			}
		} else if r.Config.UsePosteriorsForProfile {
			prof[node] = backward.PostProbProfile(r.Config.MinPostProb, r.Config.Strategy)
		} else {
			prof[node] = forward.SampleProfile(r.RNG, r.Config.ProfileSamples, r.Config.ProfileNodeLimit, r.Config.Strategy)
		}
	}

	result.RootProfile = prof[root]
	result.LpFinalForward = lpFinalFwd
	result.Alignment = MakeAlignment(t, leaves, result.RootAlignPath, root)
	return &result, nil
}

// runWithBandDoubling runs the band-doubling retry loop of §4.9.c:
// start at Config.InitialMaxDist, and on a zero-likelihood Forward
// pass, double the band; once doubling would exceed the guide's own
// column count, drop the envelope entirely; a zero-likelihood result
// with no envelope at all is a fatal NumericError.
func (r *Reconstructor) runWithBandDoubling(lProf, rProf *profile.Profile, lProbs, rProbs *ratemodel.ProbModel, hmm *ratemodel.PairHMM, guide alignpath.AlignPath, lPivot, rPivot int) (*dp.ForwardMatrix, int, error) {
	maxDist := r.Config.InitialMaxDist
	guideCols := alignpath.Columns(guide)
	for {
		var env *dp.GuideEnvelope
		if guide != nil && maxDist >= 0 {
			env = dp.NewGuideEnvelope(guide, alignpath.Row(lPivot), alignpath.Row(rPivot), maxDist)
		}
		forward := dp.NewForwardMatrix(lProf, rProf, lProbs.LogSubAll(), rProbs.LogSubAll(), hmm, env, alignpath.Row(lPivot), alignpath.Row(rPivot))
		if !numeric.IsNegInf(forward.LpEnd()) {
			return forward, maxDist, nil
		}
		if maxDist < 0 {
			return nil, maxDist, errs.Numericf("zero forward likelihood even without a guide envelope constraint")
		}
		if maxDist*2 > guideCols {
			maxDist = -1
		} else if maxDist == 0 {
			maxDist = 1
		} else {
			maxDist *= 2
		}
	}
}

func insertionDists(rate ratemodel.RateModel) [][]float64 {
	out := make([][]float64, rate.NumComponents())
	for c := range out {
		out[c] = rate.InsertionDist(c)
	}
	return out
}

