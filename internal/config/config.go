// Package config loads the engine's tunable parameters from a TOML
// file, the way bowdb.Config loads its own JSON sidecar file -- except
// this corpus's CLI tooling reaches for TOML, so this package does too.
package config

import (
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/BurntSushi/profalign/internal/errs"
)

// Budget bounds the memory the DP grid may occupy before the engine
// falls back to a sparse envelope. A zero MegabytesLimit means
// "auto-detect": AutoDetect fills it in from the OS's available memory
// instead of failing with a ConfigurationError, carrying forward the
// original implementation's -kmatchmb 0 behaviour.
type Budget struct {
	MegabytesLimit int `toml:"megabytes_limit"`
}

// AutoDetect fills in b.MegabytesLimit from the available probe when it
// is zero (internal/sysmem.AvailableMB has the matching signature). It
// is a no-op when MegabytesLimit is already set.
func (b *Budget) AutoDetect(available func() (int, error)) error {
	if b.MegabytesLimit != 0 {
		return nil
	}
	mb, err := available()
	if err != nil {
		return errs.Wrap(err, "auto-detecting memory budget")
	}
	b.MegabytesLimit = mb
	return nil
}

// Config collects every tunable knob §9 and the DOMAIN STACK mention:
// k-mer seeding parameters, the envelope band half-width (independent
// of k-mer threshold, per the original's DiagEnvParams), the memory
// budget, posterior-pruning threshold, profiling strategy flags, and
// the PRNG seed driving SampleProfile's stochastic traceback.
type Config struct {
	KmerLength    int    `toml:"kmer_length"`
	KmerThreshold int    `toml:"kmer_threshold"`
	BandHalfWidth int    `toml:"band_half_width"`
	Budget        Budget `toml:"budget"`
	MinPostProb   float64 `toml:"min_post_prob"`

	UsePosteriorsForProfile bool `toml:"use_posteriors_for_profile"`
	KeepGapsOpen            bool `toml:"keep_gaps_open"`
	IncludeBestTrace        bool `toml:"include_best_trace"`
	ProfileSamples          int  `toml:"profile_samples"`
	ProfileNodeLimit        int  `toml:"profile_node_limit"`

	Seed int64 `toml:"seed"`

	CacheDir  string `toml:"cache_dir"`
	OutputDir string `toml:"output_dir"`
}

// Default returns the engine's defaults: k-mer length 6 and threshold
// 1, a band half-width of 64, posterior threshold 0.01, the best of 100
// sampled traces per internal node, and a fixed PRNG seed for
// reproducibility.
func Default() Config {
	return Config{
		KmerLength:    6,
		KmerThreshold: 1,
		BandHalfWidth: 64,
		MinPostProb:   0.01,
		ProfileSamples: 100,
		Seed:          1,
		CacheDir:      "~/.cache/profalign",
		OutputDir:     ".",
	}
}

// Load reads and decodes the TOML file at path, starting from
// Default() so a sparse config file only needs to set the knobs it
// wants to change, then expands ~ in CacheDir/OutputDir via
// go-homedir.
func Load(path string) (Config, error) {
	conf := Default()

	f, err := os.Open(path)
	if err != nil {
		return conf, errs.Wrap(err, "opening config file "+path)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&conf); err != nil {
		return conf, errs.Configurationf("decoding TOML in %s: %s", path, err)
	}

	if conf.CacheDir, err = homedir.Expand(conf.CacheDir); err != nil {
		return conf, errs.Wrap(err, "expanding cache_dir")
	}
	if conf.OutputDir, err = homedir.Expand(conf.OutputDir); err != nil {
		return conf, errs.Wrap(err, "expanding output_dir")
	}
	return conf, nil
}
