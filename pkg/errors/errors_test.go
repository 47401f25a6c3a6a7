package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestLogFlowError_ContextOrder(t *testing.T) {
	err := New(CodeInvalidConfig, "invalid configuration").
		WithContext("field", "viewer.port").
		WithContext("reason", "must be positive")

	want := "[E405] invalid configuration (field=viewer.port, reason=must be positive)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, CodeWriteFailed, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, CodeWriteFailed, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestGetCode(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"logflow", WriteFailed(cause, "kpi.json"), CodeWriteFailed},
		{"wrapped", fmt.Errorf("export: %w", WriteFailed(cause, "kpi.json")), CodeWriteFailed},
		{"schema", &SchemaError{Missing: []string{"case_id"}}, CodeMissingColumn},
		{"quality", &DataQualityError{TotalRows: 3, NullRows: []int{1}}, CodeValidationFailed},
		{"plain", cause, CodeUnknown},
		{"nil", nil, CodeUnknown},
	}

	for _, tt := range tests {
		if got := GetCode(tt.err); got != tt.want {
			t.Errorf("%s: GetCode() = %s, want %s", tt.name, got, tt.want)
		}
	}

	if !errors.Is(WriteFailed(cause, "a"), cause) {
		t.Error("expected WriteFailed to unwrap to its cause")
	}
}

func TestSchemaError_Message(t *testing.T) {
	err := &SchemaError{
		Missing:   []string{"activity_name", "timestamp"},
		Available: []string{"case_id", "resource"},
	}
	msg := err.Error()
	if !strings.Contains(msg, "activity_name, timestamp") {
		t.Errorf("message should list every missing column, got %q", msg)
	}
}

func TestDataQualityError_Message(t *testing.T) {
	rows := make([]int, 25)
	for i := range rows {
		rows[i] = i * 2
	}
	err := &DataQualityError{
		TotalRows:            100,
		NullRows:             []int{3, 7},
		NullColumns:          map[string]int{"timestamp": 1, "activity_name": 1},
		InvalidTimestampRows: rows,
	}

	msg := err.Error()
	for _, want := range []string{
		"2 of 100 rows have null or empty required values",
		"[activity_name=1, timestamp=1]",
		"[E105] 25 of 100 rows have unparseable timestamps",
		"... 5 more",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestDataQualityError_OffendingRows(t *testing.T) {
	err := &DataQualityError{NullRows: []int{1, 2}, InvalidTimestampRows: []int{2, 5}}
	if got := err.OffendingRows(); got != 3 {
		t.Errorf("OffendingRows() = %d, want 3", got)
	}
}

func TestDataQualityError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  *DataQualityError
		want []Code
	}{
		{"nulls only", &DataQualityError{NullRows: []int{0}}, []Code{CodeValidationFailed}},
		{"timestamps", &DataQualityError{InvalidTimestampRows: []int{4}}, []Code{CodeValidationFailed, CodeInvalidTimestamp}},
	}
	for _, tt := range tests {
		got := tt.err.Codes()
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("%s: Codes() = %v, want %v", tt.name, got, tt.want)
		}
	}

	msg := (&DataQualityError{TotalRows: 2, NullRows: []int{1}}).Error()
	if strings.Contains(msg, string(CodeInvalidTimestamp)) {
		t.Errorf("message %q should not mention %s without timestamp failures", msg, CodeInvalidTimestamp)
	}
}

func TestContextCanceled(t *testing.T) {
	err := ContextCanceled("discover", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("expected ContextCanceled to unwrap to its cause")
	}
	want := "[E401] operation canceled (operation=discover): context canceled"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFormatStack_StartsAtCaller(t *testing.T) {
	stack := New(CodeUnknown, "boom").FormatStack()
	if !strings.Contains(stack, "TestFormatStack_StartsAtCaller") {
		t.Errorf("stack should name the calling test, got:\n%s", stack)
	}
	if strings.Contains(stack, "captureStack") {
		t.Errorf("stack should not include capture helpers, got:\n%s", stack)
	}
}
