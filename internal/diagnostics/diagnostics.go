// Package diagnostics implements the DiagnosticsEmitter (spec §4.6):
// a JSON sidecar tallying item counts, final-language counts, and
// decision-code counts across one stage-2 run, plus run metadata. It
// additively embeds the operational RunMetrics block the teacher's
// metrics package already produces (stage durations, peak memory,
// throughput), so an operator gets both the spec-required audit
// counters and the ambient performance picture in one file.
package diagnostics

import (
	"sort"

	"github.com/impresso-project/lid-core/internal/metrics"
	"github.com/impresso-project/lid-core/internal/stage2"
)

// Report is the on-disk diagnostics shape (spec §4.6, §6).
type Report struct {
	N             map[string]int    `json:"N"`
	Lg            map[string]int    `json:"lg"`
	DecisionCodes map[string]int    `json:"decision_codes"`
	ModelVersions map[string]string `json:"model_versions,omitempty"`
	ToolVersion   string            `json:"tool_version"`
	GitDescribe   string            `json:"git_describe,omitempty"`
	RunMetrics    *metrics.RunMetrics `json:"run_metrics,omitempty"`
}

// Emitter accumulates a Report across every item Decide processes
// during one invocation of the decide tool. It is not safe for
// concurrent use; callers fanning work out across units (see
// internal/schedule) should give each goroutine its own Emitter and
// merge with Report.Merge.
type Emitter struct {
	report Report
}

// NewEmitter builds an Emitter carrying the run's fixed metadata.
func NewEmitter(toolVersion, gitDescribe string, modelVersions map[string]string) *Emitter {
	return &Emitter{report: Report{
		N:             make(map[string]int),
		Lg:            make(map[string]int),
		DecisionCodes: make(map[string]int),
		ModelVersions: modelVersions,
		ToolVersion:   toolVersion,
		GitDescribe:   gitDescribe,
	}}
}

// Observe tallies one decided item under its (collection, year) unit.
func (e *Emitter) Observe(collection, year string, rec stage2.Record) {
	key := collection + "-" + year
	e.report.N[key]++
	e.report.Lg[rec.FinalLanguage]++
	e.report.DecisionCodes[rec.DecisionCode]++
}

// Finalize attaches an optional RunMetrics block and returns the
// completed Report.
func (e *Emitter) Finalize(run *metrics.RunMetrics) Report {
	e.report.RunMetrics = run
	return e.report
}

// Merge folds other's tallies into r, for combining per-unit Emitters
// produced by a schedule.Pool fan-out. The fixed metadata fields
// (ToolVersion, GitDescribe, ModelVersions) are taken from r and left
// untouched; RunMetrics, if either side has one, is not merged here —
// callers attach a single combined RunMetrics after merging counts.
func (r *Report) Merge(other Report) {
	for k, v := range other.N {
		r.N[k] += v
	}
	for k, v := range other.Lg {
		r.Lg[k] += v
	}
	for k, v := range other.DecisionCodes {
		r.DecisionCodes[k] += v
	}
}

// SortedUnits returns the (collection, year) keys of N in lexicographic
// order, for stable reporting in the ui package.
func (r Report) SortedUnits() []string {
	keys := make([]string, 0, len(r.N))
	for k := range r.N {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
