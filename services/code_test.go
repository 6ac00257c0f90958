package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "lowercase with prefix", raw: "gigg1234abcd", want: "GIGG-1234-ABCD"},
		{name: "canonical is unchanged", raw: "GIGG-1234-ABCD", want: "GIGG-1234-ABCD"},
		{name: "spaces and dashes stripped", raw: "gigg ab12-cd34", want: "GIGG-AB12-CD34"},
		{name: "bare body", raw: "1234abcd", want: "GIGG-1234-ABCD"},
		{name: "body starting with gigg kept", raw: "GIGGAB12", want: "GIGG-GIGG-AB12"},
		{name: "too short", raw: "gigg123", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "punctuation only", raw: "----  --", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCode_Idempotent(t *testing.T) {
	raws := []string{"gigg1234abcd", "GIGG-AB12-CD34", "gigg zz99 yy88", "12ab34cd"}
	for _, raw := range raws {
		once, err := NormalizeCode(raw)
		require.NoError(t, err)
		twice, err := NormalizeCode(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, raw)
	}
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("GIGG-1234-ABCD"))
	assert.ErrorIs(t, ValidateCode("GIGG-123-ABCD"), ErrInvalidFormat)
	assert.ErrorIs(t, ValidateCode("gigg-1234-abcd"), ErrInvalidFormat)
	assert.ErrorIs(t, ValidateCode("GIGG-1234-ABCD-EXTRA"), ErrInvalidFormat)
	assert.ErrorIs(t, ValidateCode(""), ErrInvalidFormat)
}

func TestExtractScannedCode(t *testing.T) {
	assert.Equal(t, "GIGG-AB12-CD34", ExtractScannedCode("GIGG-AB12-CD34"))
	assert.Equal(t, "GIGG-AB12-CD34", ExtractScannedCode("https://gigg.example/t/GIGG-AB12-CD34"))
	assert.Equal(t, "GIGG-AB12-CD34", ExtractScannedCode("https://gigg.example/tickets/t/GIGG-AB12-CD34?src=qr"))
	assert.Equal(t, "GIGG-AB12-CD34", ExtractScannedCode("/t/GIGG-AB12-CD34"))

	// full pipeline: scan payload to canonical code
	code, err := NormalizeCode(ExtractScannedCode("https://gigg.example/t/gigg ab12cd34"))
	assert.NoError(t, err)
	assert.Equal(t, "GIGG-AB12-CD34", code)
}
