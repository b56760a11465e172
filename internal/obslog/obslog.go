// Package obslog provides structured, per-item logging for the
// recoverable failures the pipeline is allowed to keep going through
// (spec §7): a classifier runtime error and a malformed input line, plus
// missing collection stats and run start/end. It is a thin wrapper over
// logrus, kept separate
// from the three stage packages so none of them needs to import
// logrus directly to stay pure-function testable.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a configured *logrus.Logger with the fixed field
// vocabulary the pipeline's recoverable-failure paths use.
type Logger struct {
	*logrus.Logger
	component string
}

// New builds a Logger that writes JSON lines to stderr. verbose raises
// the level to Debug; otherwise only Info and above are emitted.
func New(component string, verbose bool) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &Logger{Logger: l, component: component}
}

// ClassifierError logs a recoverable per-item classifier runtime
// failure: the item still gets annotated, this classifier's slot is
// Unavailable (spec §7).
func (l *Logger) ClassifierError(itemID, classifier string, err error) {
	l.WithFields(logrus.Fields{
		"component":  l.component,
		"item_id":    itemID,
		"classifier": classifier,
		"reason":     "runtime_error",
		"error":      err.Error(),
	}).Warn("classifier unavailable for item")
}

// MalformedRecord logs a line that failed to decode while streaming an
// input file, together with its position so the operator can locate
// it.
func (l *Logger) MalformedRecord(path string, line int, err error) {
	l.WithFields(logrus.Fields{
		"component": l.component,
		"path":      path,
		"line":      line,
		"error":     err.Error(),
	}).Error("malformed record skipped")
}

// MissingCollectionStats logs the fatal condition of spec §4.5: a
// stage-2 run with no collection stats for one of its items.
func (l *Logger) MissingCollectionStats(collection string, err error) {
	l.WithFields(logrus.Fields{
		"component":  l.component,
		"collection": collection,
		"error":      err.Error(),
	}).Error("collection stats unavailable")
}

// RunStart/RunDone bracket one tool invocation for operational
// visibility; fields is free-form run configuration worth recording
// alongside the run (flag values, classifier list, run id).
func (l *Logger) RunStart(runID string, fields map[string]any) {
	e := l.WithField("component", l.component).WithField("run_id", runID)
	for k, v := range fields {
		e = e.WithField(k, v)
	}
	e.Info("run started")
}

func (l *Logger) RunDone(runID string, itemCount int, err error) {
	e := l.WithField("component", l.component).WithField("run_id", runID).WithField("items", itemCount)
	if err != nil {
		e.WithField("error", err.Error()).Error("run failed")
		return
	}
	e.Info("run completed")
}
