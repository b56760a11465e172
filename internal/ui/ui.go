// Package ui provides terminal UI components using pterm.
package ui

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// Theme colors for consistent styling
var (
	ColorPrimary   = pterm.FgCyan
	ColorSecondary = pterm.FgLightBlue
	ColorSuccess   = pterm.FgGreen
	ColorWarning   = pterm.FgYellow
	ColorError     = pterm.FgRed
	ColorMuted     = pterm.FgGray
)

// UI wraps pterm components for the annotate/aggregate/decide tools.
type UI struct {
	quiet   bool
	verbose bool
}

// New creates a new UI instance.
func New(quiet, verbose bool) *UI {
	if quiet {
		pterm.DisableOutput()
	}
	return &UI{quiet: quiet, verbose: verbose}
}

// Banner prints the application banner.
func (u *UI) Banner(tool string) {
	pterm.DefaultBigText.WithLetters(
		pterm.NewLettersFromStringWithStyle("lid", pterm.NewStyle(pterm.FgCyan)),
	).Render()

	pterm.DefaultCenter.Println(
		pterm.FgGray.Sprint(tool),
	)
	fmt.Println()
}

// Config prints the configuration summary for one run.
func (u *UI) Config(rows [][2]string) {
	pterm.DefaultSection.Println("Configuration")

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r[0], r[1]})
	}

	pterm.DefaultTable.WithData(data).Render()
	fmt.Println()
}

// Phase prints a phase header.
func (u *UI) Phase(number int, total int, name string) {
	pterm.DefaultSection.WithLevel(2).Println(
		fmt.Sprintf("[%d/%d] %s", number, total, name),
	)
}

// Spinner creates a spinner for long operations.
func (u *UI) Spinner(message string) *pterm.SpinnerPrinter {
	spinner, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(true).
		Start(message)
	return spinner
}

// Progress creates a progress bar over a known number of items.
func (u *UI) Progress(title string, total int) *pterm.ProgressbarPrinter {
	pb, _ := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		WithShowElapsedTime(true).
		WithShowCount(true).
		Start()
	return pb
}

// UnitStatus prints status for one (collection, year) unit processed
// by a schedule.Pool fan-out.
func (u *UI) UnitStatus(unit string, status string, details string) {
	prefix := pterm.FgCyan.Sprintf("[%s]", unit)
	switch status {
	case "ok":
		pterm.Success.Println(prefix, details)
	case "skip":
		pterm.Warning.Println(prefix, details)
	case "error":
		pterm.Error.Println(prefix, details)
	case "info":
		pterm.Info.Println(prefix, details)
	default:
		fmt.Printf("%s %s\n", prefix, details)
	}
}

// Stats prints an arbitrary key/value table under a titled section.
func (u *UI) Stats(title string, stats map[string]interface{}) {
	pterm.DefaultSection.WithLevel(2).Println(title)

	var data [][]string
	for k, v := range stats {
		data = append(data, []string{k, fmt.Sprintf("%v", v)})
	}

	pterm.DefaultTable.WithData(data).Render()
	fmt.Println()
}

// LanguageCounts prints per-language item counts, e.g. the final
// language tallies of a decide run.
func (u *UI) LanguageCounts(title string, byLanguage map[string]int) {
	if len(byLanguage) == 0 {
		return
	}
	pterm.DefaultSection.WithLevel(2).Println(title)

	data := pterm.TableData{{"Language", "Items"}}
	for lang, count := range byLanguage {
		data = append(data, []string{lang, fmt.Sprintf("%d", count)})
	}

	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	fmt.Println()
}

// DecisionCodeCounts prints the per-decision-code tally that the
// diagnostics sidecar also records (spec §4.6), so an operator can
// sanity-check a run without opening the JSON file.
func (u *UI) DecisionCodeCounts(byCode map[string]int) {
	if len(byCode) == 0 {
		return
	}
	pterm.DefaultSection.WithLevel(2).Println("Decision codes")

	data := pterm.TableData{{"Code", "Items"}}
	for code, count := range byCode {
		data = append(data, []string{code, fmt.Sprintf("%d", count)})
	}

	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	fmt.Println()
}

// FinalReport prints the final summary report of one run.
func (u *UI) FinalReport(itemsProcessed int, recordsWritten int, duration time.Duration) {
	pterm.DefaultSection.Println("Summary")

	panel := pterm.DefaultBox.WithTitle("Results").Sprint(
		fmt.Sprintf(
			"  Items Processed: %s\n"+
				"  Records Written:  %s\n"+
				"  Duration:         %s\n"+
				"  Throughput:       %s items/sec",
			pterm.FgGreen.Sprintf("%d", itemsProcessed),
			pterm.FgCyan.Sprintf("%d", recordsWritten),
			pterm.FgYellow.Sprint(duration.Round(time.Millisecond)),
			pterm.FgMagenta.Sprintf("%.0f", float64(itemsProcessed)/duration.Seconds()),
		),
	)
	fmt.Println(panel)
}

// Success prints a success message.
func (u *UI) Success(message string) {
	pterm.Success.Println(message)
}

// Error prints an error message.
func (u *UI) Error(message string) {
	pterm.Error.Println(message)
}

// Warning prints a warning message.
func (u *UI) Warning(message string) {
	pterm.Warning.Println(message)
}

// Info prints an info message.
func (u *UI) Info(message string) {
	pterm.Info.Println(message)
}

// Debug prints a debug message (only in verbose mode).
func (u *UI) Debug(message string) {
	if u.verbose {
		pterm.Debug.Println(message)
	}
}

// Separator prints a visual separator.
func (u *UI) Separator() {
	pterm.DefaultBasicText.Println(pterm.FgGray.Sprint("─────────────────────────────────────────────────────────────"))
}

// Done prints the completion message.
func (u *UI) Done() {
	fmt.Println()
	pterm.DefaultCenter.Println(
		pterm.FgGreen.Sprint("✓ Done!"),
	)
}
