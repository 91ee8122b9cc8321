package service

import (
	"testing"

	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestUploadedMessage(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		multi bool
		want  string
	}{
		{"single field", 1, false, "File uploaded successfully"},
		{"one of many", 1, true, "1 file(s) uploaded successfully"},
		{"many", 3, true, "3 file(s) uploaded successfully"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uploadedMessage(tt.n, tt.multi))
		})
	}
}

func TestTooLarge(t *testing.T) {
	s := &FileService{opts: Options{MaxUploadBytes: 1 << 30}}
	err := s.tooLarge()
	assert.Equal(t, apperrors.ErrFileTooLarge, apperrors.ExtractCode(err))
	assert.Equal(t, "Maximum size is 1.0 GiB.", apperrors.GetDetails(err))

	unlimited := &FileService{}
	assert.Empty(t, apperrors.GetDetails(unlimited.tooLarge()))
}
