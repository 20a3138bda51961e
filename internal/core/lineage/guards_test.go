package lineage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "1.0", want: Version{1, 0}},
		{in: " 12.34 ", want: Version{12, 34}},
		{in: "1", wantErr: true},
		{in: "1.x", wantErr: true},
		{in: "-1.0", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	assert.True(t, Version{1, 1}.After(Version{1, 0}))
	assert.True(t, Version{2, 0}.After(Version{1, 9}))
	assert.False(t, Version{1, 0}.After(Version{1, 0}))
	assert.Equal(t, 0, Version{3, 4}.Compare(Version{3, 4}))
	assert.Equal(t, "3.4", Version{3, 4}.String())
}

func TestCanEditValidity(t *testing.T) {
	prev := &Row{Version: Version{1, 0}, ValidFrom: date("2020-01-01"), ValidUntil: datePtr("2021-12-31")}
	next := &Row{Version: Version{1, 2}, ValidFrom: date("2023-01-01")}

	tests := []struct {
		name        string
		ctx         ValidityEditContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "window between neighbours",
			ctx:         ValidityEditContext{ValidFrom: date("2022-01-01"), ValidUntil: datePtr("2022-12-31"), Previous: prev, Next: next},
			wantAllowed: true,
		},
		{
			name:        "open window without successor",
			ctx:         ValidityEditContext{ValidFrom: date("2022-01-01"), Previous: prev},
			wantAllowed: true,
		},
		{
			name:       "inverted",
			ctx:        ValidityEditContext{ValidFrom: date("2022-01-02"), ValidUntil: datePtr("2022-01-01")},
			wantReason: "valid_until 2022-01-01 is before valid_from 2022-01-02",
		},
		{
			name:       "overlaps previous",
			ctx:        ValidityEditContext{ValidFrom: date("2021-12-31"), ValidUntil: datePtr("2022-12-31"), Previous: prev},
			wantReason: "valid_from 2021-12-31 overlaps version 1.0 (valid until 2021-12-31)",
		},
		{
			name:       "open window before successor",
			ctx:        ValidityEditContext{ValidFrom: date("2022-01-01"), Previous: prev, Next: next},
			wantReason: "validity window overlaps version 1.2 (valid from 2023-01-01)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanEditValidity(tt.ctx)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			if !tt.wantAllowed {
				assert.Equal(t, tt.wantReason, result.Reason)
				assert.EqualError(t, result.Error(), tt.wantReason)
			} else {
				assert.NoError(t, result.Error())
			}
		})
	}
}

func TestAddDays(t *testing.T) {
	d := time.Date(2024, time.March, 1, 15, 4, 5, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-02-29", AddDays(d, -1).Format(DateLayout))
	assert.Equal(t, "", FormatDate(nil))
}
