// Command annotate implements stage 1a of the language-identification
// pipeline: it runs the configured classifier bank over every content
// item in one input file and writes one annotated record per item,
// regardless of whether the item is long enough to later contribute to
// collection statistics (spec §4.2, §6).
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/impresso-project/lid-core/internal/classify"
	"github.com/impresso-project/lid-core/internal/config"
	"github.com/impresso-project/lid-core/internal/corpus"
	"github.com/impresso-project/lid-core/internal/jsonl"
	"github.com/impresso-project/lid-core/internal/metrics"
	"github.com/impresso-project/lid-core/internal/obslog"
	"github.com/impresso-project/lid-core/internal/stage1"
	"github.com/impresso-project/lid-core/internal/ui"
)

// Exit codes (spec §6).
const (
	exitOK             = 0
	exitOther          = 1
	exitInputParse     = 2
	exitMissingModel   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)

	configPath := preParseConfigFlag(args)
	cfgDefaults, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: loading config %q: %v\n", configPath, err)
		return exitOther
	}
	fs.String("config", configPath, "path to the TOML pipeline config file (defaults to lid.toml if present)")
	lids := fs.StringSlice("lids", cfgDefaults.Classifiers.Lids, "comma-separated classifier names to run")
	impressoFTPath := fs.String("impresso-ft", cfgDefaults.Classifiers.ImpressoFT, "path to the impresso_ft fastText model (pure-Go profile scorer if empty)")
	wpFTPath := fs.String("wp-ft", cfgDefaults.Classifiers.WPFT, "path to the wp_ft fastText model (pure-Go profile scorer if empty)")
	minimalTextLength := fs.Int("minimal-text-length", cfgDefaults.Annotate.MinimalTextLength, "minimum character count before classifiers run at all")
	infile := fs.String("infile", "", "input content-item JSONL(.gz) file (required)")
	outfile := fs.String("outfile", "", "output stage-1a JSONL(.gz) file (required)")
	roundNdigits := fs.Int("round-ndigits", cfgDefaults.Annotate.RoundNdigits, "round predicted probabilities to this many decimal digits (-1 disables)")
	gitDescribe := fs.String("git-describe", "", "build identifier recorded as tool_version in every output record")
	quiet := fs.Bool("quiet", cfgDefaults.Quiet, "suppress progress output")
	verbose := fs.Bool("verbose", cfgDefaults.Verbose, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitOther
	}
	if *infile == "" || *outfile == "" {
		fmt.Fprintln(os.Stderr, "annotate: --infile and --outfile are required")
		return exitOther
	}

	u := ui.New(*quiet, *verbose)
	log := obslog.New("annotate", *verbose)
	collector := metrics.NewCollector()
	collector.SetConfig("infile", *infile)
	collector.SetConfig("outfile", *outfile)
	collector.SetConfig("lids", *lids)

	host, _ := os.Hostname()
	stamps := corpus.Stamps{Path: *outfile, Host: host}
	skip, err := stamps.Claim(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		return exitOther
	}
	if skip {
		u.Info(fmt.Sprintf("%s already claimed or complete, skipping", *outfile))
		return exitOK
	}

	available, err := classify.DefaultBackends(*impressoFTPath, *wpFTPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: loading models: %v\n", err)
		_ = stamps.Release()
		return exitMissingModel
	}
	registry, err := classify.NewRegistry(*lids, available)
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		_ = stamps.Release()
		return exitOther
	}
	bank := classify.NewBank(registry, *minimalTextLength)

	type versioned interface{ Version() string }
	modelVersions := map[string]string{}
	for _, name := range registry.Names() {
		b, _ := registry.Get(name)
		if v, ok := b.(versioned); ok {
			modelVersions[name] = v.Version()
		}
	}
	annotator := stage1.NewAnnotator(bank, *gitDescribe, modelVersions)

	u.Banner("annotate")

	in, err := os.Open(*infile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: open %q: %v\n", *infile, err)
		_ = stamps.Release()
		return exitInputParse
	}
	defer in.Close()

	reader, err := jsonl.NewReader(in, codecFor(*infile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		_ = stamps.Release()
		return exitInputParse
	}
	defer reader.Close()

	tmpOut := *outfile + ".working." + host
	outFile, err := os.Create(tmpOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: create %q: %v\n", tmpOut, err)
		_ = stamps.Release()
		return exitOther
	}
	writer, err := jsonl.NewWriter(outFile, codecFor(*outfile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		outFile.Close()
		_ = stamps.Release()
		return exitOther
	}

	collector.StartStage("annotate")
	start := time.Now()
	count := 0
	for {
		var item corpus.ContentItem
		if err := reader.Next(&item); err != nil {
			if err == io.EOF {
				break
			}
			log.MalformedRecord(*infile, count+1, err)
			fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
			writer.Close()
			outFile.Close()
			os.Remove(tmpOut)
			_ = stamps.Release()
			return exitInputParse
		}

		rec := annotator.Annotate(item)
		if *roundNdigits >= 0 {
			stage1.RoundPredictions(&rec, *roundNdigits)
		}
		if err := writer.Write(rec); err != nil {
			fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
			writer.Close()
			outFile.Close()
			os.Remove(tmpOut)
			_ = stamps.Release()
			return exitOther
		}
		count++
	}
	collector.SetCounter("items_annotated", int64(count))
	collector.EndStage("annotate")

	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		outFile.Close()
		os.Remove(tmpOut)
		_ = stamps.Release()
		return exitOther
	}
	outFile.Close()
	if err := os.Rename(tmpOut, *outfile); err != nil {
		fmt.Fprintf(os.Stderr, "annotate: rename %q -> %q: %v\n", tmpOut, *outfile, err)
		_ = stamps.Release()
		return exitOther
	}
	if err := stamps.Complete(); err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		return exitOther
	}

	run := collector.Finalize(int64(count), 1)
	u.FinalReport(count, 1, time.Since(start))
	log.RunDone(run.RunID, count, nil)
	u.Done()
	return exitOK
}

// codecFor selects the jsonl codec by file extension, so .gz inputs and
// outputs are transparently compressed while plain .jsonl fixtures used
// in local testing are not.
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
	fs := flag.NewFlagSet("annotate-config", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}
