package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunErrorMessage(t *testing.T) {
	err := E(KindMissingInputFile, "csvtable.Read", stderrors.New("open nq.csv: no such file"))
	assert.Equal(t, "csvtable.Read: missing_input_file: open nq.csv: no such file", err.Error())

	bare := &RunError{Kind: KindNoData, Op: "fetch.FetchBars"}
	assert.Equal(t, "fetch.FetchBars: no_data", bare.Error())
}

func TestKindMatchingThroughWrapping(t *testing.T) {
	inner := Errorf(KindUnknownTimezone, "config.Validate", "unknown zone %q", "Mars/Olympus")
	wrapped := fmt.Errorf("startup failed: %w", inner)

	assert.True(t, IsKind(wrapped, KindUnknownTimezone))
	assert.False(t, IsKind(wrapped, KindNoData))
	assert.Equal(t, KindUnknownTimezone, KindOf(wrapped))
}

func TestKindOfUnclassifiedForPlainErrors(t *testing.T) {
	assert.Equal(t, KindUnclassified, KindOf(stderrors.New("boom")))
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := E(KindEmptyAfterNormalization, "transform.Run", stderrors.New("no valid timestamps"))

	assert.True(t, stderrors.Is(err, &RunError{Kind: KindEmptyAfterNormalization}))
	assert.False(t, stderrors.Is(err, &RunError{Kind: KindMissingInputFile}))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := stderrors.New("root cause")
	err := E(KindUnclassified, "sink.Write", cause)

	require.ErrorIs(t, err, cause)
}

func TestKindStrings(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnclassified, "unclassified"},
		{KindMissingInputFile, "missing_input_file"},
		{KindMissingRequiredColumn, "missing_required_column"},
		{KindEmptyAfterNormalization, "empty_after_normalization"},
		{KindUnknownTimezone, "unknown_timezone"},
		{KindNoData, "no_data"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}
