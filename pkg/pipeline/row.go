package pipeline

import (
	"math"
	"path/filepath"

	"github.com/hunterdeturk/PRIMA/pkg/effect"
	"github.com/hunterdeturk/PRIMA/pkg/pdftext"
	"github.com/hunterdeturk/PRIMA/pkg/peco"
)

// errorNoteChars bounds the error text copied into the notes column.
const errorNoteChars = 300

// OutputRow is the flattened result for one document. A failed document has
// a non-nil Err. Its Record is nil unless the text could not be recovered and
// the model still answered for the empty text.
type OutputRow struct {
	Document   Document
	Method     pdftext.Method
	Confidence float64
	Truncated  bool
	Record     *peco.Record
	Stats      *effect.Statistics
	SkipReason string // why Stats is nil on a successful row
	Err        error
}

// Failed reports whether the document produced no record.
func (r OutputRow) Failed() bool {
	return r.Err != nil
}

// ErrorText is the error column value.
func (r OutputRow) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

var (
	leadColumns  = []string{"file", "document_id", "extraction_method", "text_confidence", "truncated"}
	statsColumns = []string{"odds_ratio", "log_odds_ratio", "standard_error", "ci_low", "ci_high", "continuity_corrected"}
)

// Columns implements output.Record.
func (r OutputRow) Columns() []string {
	fields := peco.MustSchema().FieldNames()
	cols := make([]string, 0, len(leadColumns)+len(fields)+len(statsColumns)+1)
	cols = append(cols, leadColumns...)
	cols = append(cols, fields...)
	cols = append(cols, statsColumns...)
	return append(cols, "error")
}

// Values implements output.Record.
func (r OutputRow) Values() []any {
	fields := peco.MustSchema().FieldNames()
	vals := make([]any, 0, len(leadColumns)+len(fields)+len(statsColumns)+1)

	vals = append(vals,
		filepath.Base(r.Document.Path),
		r.Document.ID,
		string(r.Method),
		math.Round(r.Confidence*1000)/1000,
		r.Truncated,
	)

	var record map[string]any
	if r.Record != nil {
		record = r.Record.Values()
	}
	for _, name := range fields {
		switch {
		case name == "notes" && r.Err != nil && record["notes"] == nil:
			vals = append(vals, errorNote(r.Err))
		default:
			vals = append(vals, record[name])
		}
	}

	if s := r.Stats; s != nil {
		vals = append(vals, s.OddsRatio, s.LogOddsRatio, s.StandardError, s.CILow, s.CIHigh, s.Corrected)
	} else {
		vals = append(vals, nil, nil, nil, nil, nil, nil)
	}

	var errText any
	if r.Err != nil {
		errText = r.ErrorText()
	}
	return append(vals, errText)
}

func errorNote(err error) string {
	msg := []rune(err.Error())
	if len(msg) > errorNoteChars {
		msg = msg[:errorNoteChars]
	}
	return "#ERROR: " + string(msg)
}
