package errors

import (
	stderrors "errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndWrap(t *testing.T) {
	err := New(ErrFileNotFound)
	assert.Equal(t, ErrFileNotFound, err.Code)
	assert.Equal(t, "File not found or expired", err.Message)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())

	wrapped := Wrap(io.ErrUnexpectedEOF, ErrStorageWrite)
	assert.True(t, Is(wrapped, ErrStorageWrite))
	assert.True(t, stderrors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.Empty(t, GetDetails(wrapped), "causes must not leak into details")

	// 已经是 AppError 的错误保持原错误码
	rewrapped := Wrap(New(ErrStorageFull), ErrInternalServer, "1.2 GB free")
	assert.Equal(t, ErrStorageFull, rewrapped.Code)
	assert.Equal(t, "1.2 GB free", GetDetails(rewrapped))

	assert.Nil(t, Wrap(nil, ErrInternalServer))
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "app error", err: New(ErrFileMissing), want: ErrFileMissing},
		{name: "plain error", err: io.EOF, want: ErrInternalServer},
		{name: "wrapped twice", err: Wrapf(New(ErrFileTooLarge), ErrInternalServer, "max %d", 1), want: ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.err))
		})
	}
}

func TestCodeTable(t *testing.T) {
	assert.Equal(t, http.StatusInsufficientStorage, GetHTTPStatus(ErrStorageFull))
	assert.Equal(t, http.StatusRequestEntityTooLarge, GetHTTPStatus(ErrFileTooLarge))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(99999))
	assert.True(t, IsClientError(ErrFileNameInvalid))
	assert.False(t, IsClientError(ErrStorageWrite))
	assert.Equal(t, "File too large: Maximum size is 1.1 GB.", FormatError(ErrFileTooLarge, "Maximum size is 1.1 GB."))
	assert.Equal(t, "Server storage low. Please try again later. Minimum free space required: 2.0 GiB.",
		FormatError(ErrStorageFull, "Minimum free space required: 2.0 GiB."))
}
