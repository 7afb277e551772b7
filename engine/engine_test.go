package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Err(t *testing.T) {
	tests := []struct {
		name      string
		code      Result
		wantErr   bool
		wantKnown bool
		wantText  string
	}{
		{name: "ok", code: S_OK},
		{name: "false is a success", code: S_FALSE},
		{name: "fail", code: E_FAIL, wantErr: true, wantKnown: true, wantText: "engine Open error: E_FAIL"},
		{name: "abort", code: E_ABORT, wantErr: true, wantKnown: true, wantText: "engine Open error: E_ABORT"},
		{name: "unknown", code: Result(-0x7ffbffff), wantErr: true, wantText: "engine Open error: unknown result 0x80040001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.code.Err("Open")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, ErrEngineFailure)
			assert.Equal(t, !tt.wantKnown, errors.Is(err, ErrUnknownResult))
			assert.EqualError(t, err, tt.wantText)

			var e *Error
			if assert.ErrorAs(t, err, &e) {
				assert.Equal(t, "Open", e.Op)
				assert.Equal(t, tt.code, e.Code)
				assert.Equal(t, !tt.wantKnown, e.Fatal())
			}
		})
	}
}

func TestResult_HRESULTValues(t *testing.T) {
	tests := []struct {
		code Result
		want uint32
	}{
		{code: E_FAIL, want: 0x80004005},
		{code: E_ABORT, want: 0x80004004},
		{code: E_NOTIMPL, want: 0x80004001},
		{code: E_INVALIDARG, want: 0x80070057},
		{code: E_OUTOFMEMORY, want: 0x8007000E},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equalf(t, tt.want, uint32(tt.code), "got 0x%08X, want 0x%08X", uint32(tt.code), tt.want)
		})
	}
}

func TestPropID_String(t *testing.T) {
	assert.Equal(t, "Path", KpidPath.String())
	assert.Equal(t, PropID(3), KpidPath)
	assert.Equal(t, PropID(21), KpidIsAnti)
	assert.Equal(t, PropID(28), KpidComment)
	assert.Equal(t, "PropID(1000)", PropID(1000).String())
}

func TestOperationResult_String(t *testing.T) {
	assert.Equal(t, "CRC error", OpCRCError.String())
	assert.Equal(t, "wrong password", OpWrongPassword.String())
	assert.Equal(t, "OperationResult(42)", OperationResult(42).String())
}
