// Command aggregate implements stage 1b of the language-identification
// pipeline: the CollectionAggregator. It streams one collection's
// stage-1a records (one or more input files, typically one per year)
// and emits the collection-level ensemble statistics stage 2 consults
// (spec §4.4, §6).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	flag "github.com/spf13/pflag"

	"github.com/impresso-project/lid-core/internal/config"
	"github.com/impresso-project/lid-core/internal/corpus"
	"github.com/impresso-project/lid-core/internal/jsonl"
	"github.com/impresso-project/lid-core/internal/obslog"
	"github.com/impresso-project/lid-core/internal/schedule"
	"github.com/impresso-project/lid-core/internal/stage1"
	"github.com/impresso-project/lid-core/internal/stage1b"
	"github.com/impresso-project/lid-core/internal/ui"
)

const (
	exitOK         = 0
	exitOther      = 1
	exitInputParse = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)

	configPath := preParseConfigFlag(args)
	cfgDefaults, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aggregate: loading config %q: %v\n", configPath, err)
		return exitOther
	}
	fs.String("config", configPath, "path to the TOML pipeline config file (defaults to lid.toml if present)")
	collection := fs.String("collection", "", "collection acronym these input files belong to (required)")
	lids := fs.StringSlice("lids", cfgDefaults.Classifiers.Lids, "comma-separated classifier names consulted during annotation")
	boostedLids := fs.StringSlice("boosted-lids", cfgDefaults.Classifiers.BoostedLids, "comma-separated voters receiving the support boost")
	minimalTextLength := fs.Int("minimal-text-length", cfgDefaults.Aggregate.MinimalTextLength, "recorded only; the admission filter itself is fixed")
	boostFactor := fs.Float64("boost-factor", cfgDefaults.Aggregate.BoostFactor, "multiplier applied to a boosted voter's own contribution when supported")
	minimalVoteScore := fs.Float64("minimal-vote-score", cfgDefaults.Aggregate.MinimalVoteScore, "minimum winning vote total before an item counts as decided")
	minimalLidProbability := fs.Float64("minimal-lid-probability", cfgDefaults.Aggregate.MinimalLidProbability, "minimum top-1 probability before a classifier's vote counts")
	outfile := fs.String("outfile", "", "output collection stats JSON path (defaults to <collection>.stats.json)")
	quiet := fs.Bool("quiet", cfgDefaults.Quiet, "suppress progress output")
	verbose := fs.Bool("verbose", cfgDefaults.Verbose, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitOther
	}
	if *collection == "" {
		fmt.Fprintln(os.Stderr, "aggregate: --collection is required")
		return exitOther
	}
	infiles := fs.Args()
	if len(infiles) == 0 {
		fmt.Fprintln(os.Stderr, "aggregate: at least one input file is required")
		return exitOther
	}
	if *outfile == "" {
		*outfile = *collection + ".stats.json"
	}

	u := ui.New(*quiet, *verbose)
	log := obslog.New("aggregate", *verbose)
	u.Banner("aggregate")
	_ = lids // recorded for provenance only; aggregation reads whatever predictions each record carries

	cfg := stage1b.NewConfig(*collection)
	cfg.BoostedLids = *boostedLids
	cfg.BoostFactor = *boostFactor
	cfg.MinimalVoteScore = *minimalVoteScore
	cfg.MinimalLidProbability = *minimalLidProbability
	cfg.MinimalTextLength = *minimalTextLength

	// Reading the input files is the embarrassingly-parallel part of
	// this tool (spec §5): each file is independent, so a bounded pool
	// reads them concurrently and the results are merged once every
	// file has reported back.
	pool := schedule.NewPool(0)
	pool.Governor = schedule.Governor{MaxLoad: cfgDefaults.MaxLoad1}
	units := make([]schedule.Unit, len(infiles))
	for i, f := range infiles {
		units[i] = schedule.Unit{Collection: *collection, Year: f}
	}

	perFile := make(map[string][]stage1.Record, len(infiles))
	var mu sync.Mutex
	var malformed int

	results := pool.Run(context.Background(), units, func(ctx context.Context, unit schedule.Unit) error {
		recs, n, err := readStage1File(unit.Year, log)
		mu.Lock()
		malformed += n
		if err == nil {
			perFile[unit.Year] = recs
		}
		mu.Unlock()
		return err
	})

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "aggregate: %v\n", r.Err)
			return exitInputParse
		}
	}

	var allRecords []stage1.Record
	for _, f := range infiles {
		recs := perFile[f]
		allRecords = append(allRecords, recs...)
		u.UnitStatus(f, "ok", fmt.Sprintf("%d records", len(recs)))
	}

	stats := stage1b.Aggregate(cfg, allRecords)

	host, _ := os.Hostname()
	if err := corpus.WriteJSONAtomic(*outfile, stats, host); err != nil {
		fmt.Fprintf(os.Stderr, "aggregate: %v\n", err)
		return exitOther
	}

	u.Stats("Collection statistics", map[string]interface{}{
		"total_items":       stats.TotalItems,
		"items_decided":     stats.ItemsDecided,
		"items_tied":        stats.ItemsTied,
		"items_low_vote":    stats.ItemsLowVote,
		"dominant_language": stats.DominantLanguage,
		"malformed_skipped": malformed,
	})
	u.LanguageCounts("Per-language decided counts", stats.PerLanguageDecided)
	u.Done()
	return exitOK
}

// readStage1File decodes one stage-1a JSONL(.gz) file into records,
// skipping malformed lines per spec §4.4 ("malformed record => skip
// that record, counter incremented in diagnostics") rather than
// aborting the whole collection.
func readStage1File(path string, log *obslog.Logger) ([]stage1.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	reader, err := jsonl.NewReader(f, codecFor(path))
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	var records []stage1.Record
	malformed := 0
	line := 0
	for {
		line++
		var r stage1.Record
		if err := reader.Next(&r); err != nil {
			if err == io.EOF {
				break
			}
			malformed++
			log.MalformedRecord(path, line, err)
			continue
		}
		records = append(records, r)
	}
	return records, malformed, nil
}

func codecFor(path string) jsonl.Codec {
	if strings.HasSuffix(path, ".gz") {
		return jsonl.GzipCodec{}
	}
	return jsonl.PassthroughCodec{}
}

// preParseConfigFlag recovers --config's value before the main flag set is
// built, since every other flag's default is sourced from the config file
// it names. Unknown flags are ignored here; they are parsed for real
// against the full flag set below.
func preParseConfigFlag(args []string) string {
	fs := flag.NewFlagSet("aggregate-config", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}
