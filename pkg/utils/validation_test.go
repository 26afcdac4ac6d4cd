package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

type sample struct {
	CaseID string `validate:"required,caseid"`
	Text   string `validate:"notblank,max=10"`
	Email  string `validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   sample
		wantErr bool
		fields  []string
	}{
		{name: "valid", input: sample{CaseID: valueobjects.NewCaseID().String(), Text: "hi"}},
		{name: "bad case id", input: sample{CaseID: "123", Text: "hi"}, wantErr: true, fields: []string{"caseid"}},
		{name: "blank text", input: sample{CaseID: valueobjects.NewCaseID().String(), Text: "   "}, wantErr: true, fields: []string{"text"}},
		{
			name:    "several",
			input:   sample{Text: "far too long for this", Email: "nope"},
			wantErr: true,
			fields:  []string{"caseid", "text", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verrs *pkgerrors.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			for _, f := range tt.fields {
				assert.Contains(t, verrs.ToMap(), f)
			}
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.FixedZone("BST", 3600))

	parsed, err := ParseTimestamp(FormatTimestamp(now))

	require.NoError(t, err)
	assert.True(t, now.Equal(parsed))
}

func TestFormatTimestampSortsLexically(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	earlier := FormatTimestamp(base.Add(100 * time.Millisecond))
	later := FormatTimestamp(base.Add(120 * time.Millisecond))

	assert.Less(t, earlier, later)
	assert.Len(t, earlier, len(later))
}
