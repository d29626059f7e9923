package validator

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type initForm struct {
	Filename string `json:"filename" binding:"required,safe_filename"`
}

func TestSafeFilename(t *testing.T) {
	binding.Validator = NewCustomValidator()
	RegisterCustom()

	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"plain name", "report.zip", false},
		{"dotted name", "archive.tar.gz", false},
		{"empty", "", true},
		{"slash", "a/b.zip", true},
		{"backslash", `a\b.zip`, true},
		{"dot", ".", true},
		{"dotdot", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&initForm{Filename: tt.filename})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
