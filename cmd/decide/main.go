// Command decide implements stage 2 of the language-identification
// pipeline: the DecisionEngine. It reads one collection-year's stage-1a
// records plus that collection's stage-1b statistics, runs the rule
// cascade over every item, and writes both the final per-item language
// decisions and a diagnostics sidecar (spec §4.5, §4.6, §6).
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/impresso-project/lid-core/internal/config"
	"github.com/impresso-project/lid-core/internal/corpus"
	"github.com/impresso-project/lid-core/internal/diagnostics"
	"github.com/impresso-project/lid-core/internal/jsonl"
	"github.com/impresso-project/lid-core/internal/metrics"
	"github.com/impresso-project/lid-core/internal/obslog"
	"github.com/impresso-project/lid-core/internal/stage1"
	"github.com/impresso-project/lid-core/internal/stage1b"
	"github.com/impresso-project/lid-core/internal/stage2"
	"github.com/impresso-project/lid-core/internal/ui"
)

const (
	exitOK            = 0
	exitOther         = 1
	exitInputParse    = 2
	exitMissingStats  = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("decide", flag.ContinueOnError)

	configPath := preParseConfigFlag(args)
	cfgDefaults, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: loading config %q: %v\n", configPath, err)
		return exitOther
	}
	fs.String("config", configPath, "path to the TOML pipeline config file (defaults to lid.toml if present)")
	lids := fs.StringSlice("lids", cfgDefaults.Classifiers.Lids, "comma-separated classifier names, recorded for provenance only; the active set uses whichever predictions each record carries")
	weightLbImpressoFT := fs.Float64("weight-lb-impresso-ft", cfgDefaults.Decide.WeightLbImpressoFT, "multiplier applied to impresso_ft's lb vote in the fallback")
	minimalLidProbability := fs.Float64("minimal-lid-probability", cfgDefaults.Decide.MinimalLidProbability, "minimum top-1 probability for a classifier to join the active set")
	minimalVotingScore := fs.Float64("minimal-voting-score", cfgDefaults.Decide.MinimalVotingScore, "minimum winning score in the fallback vote before it is accepted")
	minimalTextLength := fs.Int("minimal-text-length", cfgDefaults.Decide.MinimalTextLength, "letters_count threshold below which dominant-by-len fires")
	collectionStatsFilename := fs.String("collection-stats-filename", "", "path to this collection's stage-1b stats JSON (required)")
	infile := fs.String("infile", "", "input stage-1a JSONL(.gz) file (required)")
	outfile := fs.String("outfile", "", "output stage-2 JSONL(.gz) file (required)")
	diagnosticsJSON := fs.String("diagnostics-json", "", "output diagnostics sidecar path")
	gitDescribe := fs.String("git-describe", "", "build identifier recorded in the diagnostics sidecar")
	quiet := fs.Bool("quiet", cfgDefaults.Quiet, "suppress progress output")
	verbose := fs.Bool("verbose", cfgDefaults.Verbose, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitOther
	}
	if *infile == "" || *outfile == "" || *collectionStatsFilename == "" {
		fmt.Fprintln(os.Stderr, "decide: --infile, --outfile, and --collection-stats-filename are required")
		return exitOther
	}
	_ = lids // the active set is derived from whichever predictions each record actually carries

	u := ui.New(*quiet, *verbose)
	log := obslog.New("decide", *verbose)
	u.Banner("decide")

	host, _ := os.Hostname()
	stamps := corpus.Stamps{Path: *outfile, Host: host}
	skip, err := stamps.Claim(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: %v\n", err)
		return exitOther
	}
	if skip {
		u.Info(fmt.Sprintf("%s already claimed or complete, skipping", *outfile))
		return exitOK
	}

	var stats stage1b.Stats
	statsBytes, err := os.ReadFile(*collectionStatsFilename)
	if err != nil {
		log.MissingCollectionStats(*collectionStatsFilename, err)
		fmt.Fprintf(os.Stderr, "decide: collection stats unavailable: %v\n", err)
		_ = stamps.Release()
		return exitMissingStats
	}
	if err := json.Unmarshal(statsBytes, &stats); err != nil {
		log.MissingCollectionStats(*collectionStatsFilename, err)
		fmt.Fprintf(os.Stderr, "decide: collection stats unreadable: %v\n", err)
		_ = stamps.Release()
		return exitMissingStats
	}

	cfg := stage2.NewConfig()
	cfg.WeightLbImpressoFT = *weightLbImpressoFT
	cfg.MinimalLidProbability = *minimalLidProbability
	cfg.MinimalVotingScore = *minimalVotingScore
	cfg.MinimalTextLength = *minimalTextLength
	cfg.ToolVersion = *gitDescribe

	in, err := os.Open(*infile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: open %q: %v\n", *infile, err)
		_ = stamps.Release()
		return exitInputParse
	}
	defer in.Close()

	reader, err := jsonl.NewReader(in, codecFor(*infile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: %v\n", err)
		_ = stamps.Release()
		return exitInputParse
	}
	defer reader.Close()

	tmpOut := *outfile + ".working." + host
	outFile, err := os.Create(tmpOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: create %q: %v\n", tmpOut, err)
		_ = stamps.Release()
		return exitOther
	}
	writer, err := jsonl.NewWriter(outFile, codecFor(*outfile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: %v\n", err)
		outFile.Close()
		_ = stamps.Release()
		return exitOther
	}

	emitter := diagnostics.NewEmitter(*gitDescribe, *gitDescribe, nil)
	collector := metrics.NewCollector()
	collector.SetConfig("infile", *infile)
	collector.SetConfig("collection_stats_filename", *collectionStatsFilename)
	collector.StartStage("decide")

	start := time.Now()
	count := 0
	for {
		var r stage1.Record
		if err := reader.Next(&r); err != nil {
			if err == io.EOF {
				break
			}
			log.MalformedRecord(*infile, count+1, err)
			fmt.Fprintf(os.Stderr, "decide: %v\n", err)
			writer.Close()
			outFile.Close()
			os.Remove(tmpOut)
			_ = stamps.Release()
			return exitInputParse
		}

		decided := stage2.Decide(r, stats, cfg)
		emitter.Observe(r.Collection(), r.Year(), decided)

		var minTextLengthUsed *int
		if decided.DecisionCode == stage2.CodeDominantByLen || decided.DecisionCode == stage2.CodeAllButImpressoFT {
			v := cfg.MinimalTextLength
			minTextLengthUsed = &v
		}
		if err := writer.Write(decided.Wire(minTextLengthUsed)); err != nil {
			fmt.Fprintf(os.Stderr, "decide: %v\n", err)
			writer.Close()
			outFile.Close()
			os.Remove(tmpOut)
			_ = stamps.Release()
			return exitOther
		}
		count++
	}
	collector.SetCounter("items_decided", int64(count))
	collector.EndStage("decide")

	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "decide: %v\n", err)
		outFile.Close()
		os.Remove(tmpOut)
		_ = stamps.Release()
		return exitOther
	}
	outFile.Close()
	if err := os.Rename(tmpOut, *outfile); err != nil {
		fmt.Fprintf(os.Stderr, "decide: rename %q -> %q: %v\n", tmpOut, *outfile, err)
		_ = stamps.Release()
		return exitOther
	}

	interim := emitter.Finalize(nil)
	collector.SetTally("lg", interim.Lg)
	collector.SetTally("decision_codes", interim.DecisionCodes)

	runMetrics := collector.Finalize(int64(count), 1)
	report := emitter.Finalize(runMetrics)
	if *diagnosticsJSON != "" {
		if err := corpus.WriteJSONAtomic(*diagnosticsJSON, report, host); err != nil {
			fmt.Fprintf(os.Stderr, "decide: writing diagnostics: %v\n", err)
			_ = stamps.Release()
			return exitOther
		}
	}

	if err := stamps.Complete(); err != nil {
		fmt.Fprintf(os.Stderr, "decide: %v\n", err)
		return exitOther
	}

	u.FinalReport(count, 1, time.Since(start))
	u.DecisionCodeCounts(report.DecisionCodes)
	u.LanguageCounts("Final language counts", report.Lg)
	log.RunDone(runMetrics.RunID, count, nil)
	u.Done()
	return exitOK
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
	fs := flag.NewFlagSet("decide-config", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}
