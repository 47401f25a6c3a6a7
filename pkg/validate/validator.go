// Package validate turns raw tabular input into a sorted, immutable event log.
package validate

import (
	"sort"
	"strings"

	"github.com/logflow/procmap/internal/model"
	"github.com/logflow/procmap/internal/timefmt"
	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/observe"
)

// Columns names the three required input columns.
type Columns struct {
	CaseID    string `yaml:"case_id"`
	Activity  string `yaml:"activity"`
	Timestamp string `yaml:"timestamp"`
}

// DefaultColumns returns the conventional column names.
func DefaultColumns() Columns {
	return Columns{
		CaseID:    "case_id",
		Activity:  "activity_name",
		Timestamp: "timestamp",
	}
}

// Required returns the column names in required order.
func (c Columns) Required() []string {
	return []string{c.CaseID, c.Activity, c.Timestamp}
}

// Validator converts a raw table into an EventLog.
type Validator struct {
	columns  Columns
	observer observe.Observer
}

// Option configures a Validator.
type Option func(*Validator)

// WithObserver sets the sink for validation outcomes.
func WithObserver(o observe.Observer) Option {
	return func(v *Validator) {
		if o != nil {
			v.observer = o
		}
	}
}

// New creates a validator for the given columns.
func New(columns Columns, opts ...Option) *Validator {
	v := &Validator{
		columns:  columns,
		observer: observe.Nop{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Columns returns the configured required columns.
func (v *Validator) Columns() Columns {
	return v.columns
}

// Validate checks the table and returns the sorted event log.
// It fails with *errors.SchemaError when required columns are absent and
// with *errors.DataQualityError when any row has a null/empty required value
// or an unparseable timestamp. All offending rows are collected before failing.
// The table is not modified.
func (v *Validator) Validate(table *model.Table) (*model.EventLog, error) {
	if table == nil {
		table = &model.Table{}
	}

	if err := v.checkSchema(table); err != nil {
		return nil, err
	}

	records, err := v.convert(table.Rows)
	if err != nil {
		return nil, err
	}

	// Stable sort keeps input order for equal (case, timestamp) keys.
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CaseID != records[j].CaseID {
			return records[i].CaseID < records[j].CaseID
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	log := model.NewEventLog(records)
	v.report(log)
	return log, nil
}

// checkSchema reports every missing required column at once.
func (v *Validator) checkSchema(table *model.Table) error {
	var missing []string
	for _, col := range v.columns.Required() {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	available := make([]string, len(table.Columns))
	copy(available, table.Columns)
	return &lferrors.SchemaError{Missing: missing, Available: available}
}

// convert parses every row, aggregating failures over the whole input.
func (v *Validator) convert(rows []model.Row) ([]model.EventRecord, error) {
	records := make([]model.EventRecord, 0, len(rows))
	dq := &lferrors.DataQualityError{TotalRows: len(rows)}

	for i, row := range rows {
		caseID, okCase := value(row, v.columns.CaseID)
		activity, okAct := value(row, v.columns.Activity)
		rawTS, okTS := value(row, v.columns.Timestamp)

		if !okCase || !okAct || !okTS {
			dq.NullRows = append(dq.NullRows, i)
			if dq.NullColumns == nil {
				dq.NullColumns = make(map[string]int)
			}
			for col, ok := range map[string]bool{
				v.columns.CaseID:    okCase,
				v.columns.Activity:  okAct,
				v.columns.Timestamp: okTS,
			} {
				if !ok {
					dq.NullColumns[col]++
				}
			}
		}
		if !okTS {
			continue
		}

		ts, err := timefmt.Parse(rawTS)
		if err != nil {
			dq.InvalidTimestampRows = append(dq.InvalidTimestampRows, i)
			continue
		}

		if okCase && okAct {
			records = append(records, model.EventRecord{
				CaseID:    caseID,
				Activity:  activity,
				Timestamp: ts,
				Row:       i,
			})
		}
	}

	if len(dq.NullRows) > 0 || len(dq.InvalidTimestampRows) > 0 {
		return nil, dq
	}
	return records, nil
}

// value returns the trimmed cell and whether it is present and non-empty.
// Surrounding whitespace is not part of the value.
func value(row model.Row, col string) (string, bool) {
	raw, ok := row[col]
	if !ok {
		return "", false
	}
	s := strings.TrimSpace(raw)
	return s, s != ""
}

// report emits informational messages and non-fatal warnings.
func (v *Validator) report(log *model.EventLog) {
	if log.Len() == 0 {
		v.observer.Warn("event log is empty", "warning", observe.WarningEmptyResult, "events", 0, "cases", 0)
		return
	}

	cases, short := 0, 0
	log.ForEachCase(func(_ int, c model.Case) {
		cases++
		if len(c.Events) < 2 {
			short++
		}
	})

	v.observer.Info("validated event log", "events", log.Len(), "cases", cases)
	if short > 0 {
		v.observer.Warn("cases have fewer than 2 events",
			"warning", observe.WarningShortCases, "cases", short)
	}
}
