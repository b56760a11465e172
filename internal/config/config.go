// Package config centralizes the pipeline's tunable defaults the way
// the teacher centralized dictionary-building defaults in a single
// config.json: one file of fallback values, loaded once, with every
// CLI flag's default wired to it so `--help` and the config file never
// drift apart. The teacher's config was JSON; this one is TOML via
// BurntSushi/toml (a dependency the teacher's go.mod already carried
// but never exercised), since TOML's section syntax maps more
// naturally onto the three independent CLI tools' flag groups than a
// flat JSON object would.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/impresso-project/lid-core/internal/stage1b"
	"github.com/impresso-project/lid-core/internal/stage2"
)

// Classifiers lists the classifier registry names to run, and which of
// them receive the collection-level support boost (spec §4.4).
type Classifiers struct {
	Lids        []string `toml:"lids"`
	BoostedLids []string `toml:"boosted_lids"`
	ImpressoFT  string   `toml:"impresso_ft_model"`
	WPFT        string   `toml:"wp_ft_model"`
}

// Stage1Defaults mirrors the annotate tool's flags.
type Stage1Defaults struct {
	MinimalTextLength int `toml:"minimal_text_length"`
	RoundNdigits      int `toml:"round_ndigits"`
}

// Stage1bDefaults mirrors the aggregate tool's flags.
type Stage1bDefaults struct {
	BoostFactor           float64 `toml:"boost_factor"`
	MinimalVoteScore      float64 `toml:"minimal_vote_score"`
	MinimalLidProbability float64 `toml:"minimal_lid_probability"`
	MinimalTextLength     int     `toml:"minimal_text_length"`
}

// Stage2Defaults mirrors the decide tool's flags.
type Stage2Defaults struct {
	WeightLbImpressoFT    float64 `toml:"weight_lb_impresso_ft"`
	MinimalLidProbability float64 `toml:"minimal_lid_probability"`
	MinimalVotingScore    float64 `toml:"minimal_voting_score"`
	MinimalTextLength     int     `toml:"minimal_text_length"`
}

// Pipeline is the top-level shape of lid.toml.
type Pipeline struct {
	Classifiers Classifiers    `toml:"classifiers"`
	Annotate    Stage1Defaults `toml:"annotate"`
	Aggregate   Stage1bDefaults `toml:"aggregate"`
	Decide      Stage2Defaults `toml:"decide"`
	Quiet       bool           `toml:"quiet"`
	Verbose     bool           `toml:"verbose"`
	MaxLoad1    float64        `toml:"max_load1"` // schedule.Governor.MaxLoad; 0 disables throttling
}

// Default returns the built-in fallback configuration, matching the
// defaults each stage package already carries (stage1b.NewConfig,
// stage2.NewConfig) so a missing lid.toml never changes behavior.
func Default() Pipeline {
	return Pipeline{
		Classifiers: Classifiers{
			Lids:        []string{"impresso_ft", "wp_ft", "langid", "langdetect", "lingua"},
			BoostedLids: stage1b.DefaultBoostedLids(),
		},
		Annotate: Stage1Defaults{
			MinimalTextLength: 20,
			RoundNdigits:       -1,
		},
		Aggregate: Stage1bDefaults{
			BoostFactor:           stage1b.DefaultBoostFactor,
			MinimalVoteScore:      stage1b.DefaultMinimalVoteScore,
			MinimalLidProbability: stage1b.DefaultMinimalLidProbability,
			MinimalTextLength:     20,
		},
		Decide: Stage2Defaults{
			WeightLbImpressoFT:    stage2.DefaultWeightLbImpressoFT,
			MinimalLidProbability: stage2.DefaultMinimalLidProbability,
			MinimalVotingScore:    stage2.DefaultMinimalVotingScore,
			MinimalTextLength:     stage2.DefaultMinimalTextLength,
		},
		MaxLoad1: 0,
	}
}

// Load reads path (falling back through a short search list when path
// is empty, mirroring the teacher's walk-up-from-cwd search) and
// overlays it onto Default(). A missing file is not an error: Default()
// is returned unchanged, since every field already has a sensible
// fallback (Design Note §9).
func Load(path string) (Pipeline, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{"lid.toml", "./lid.toml"}
		if exe, err := os.Executable(); err == nil {
			dir := filepath.Dir(exe)
			candidates = append(candidates, filepath.Join(dir, "lid.toml"))
		}
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err != nil {
			continue
		}
		if _, err := toml.DecodeFile(c, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	return cfg, nil
}
