package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/backtester/utils"
)

func TestCompressedStringRoundTrip(t *testing.T) {
	original := []byte(`{"equity_curve":[{"bar_index":0,"value":100000}]}`)

	compressed := utils.ToCompressedString(original)
	assert.NotEmpty(t, compressed)

	restored, err := utils.FromCompressedString(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestFromCompressedStringRejectsGarbage(t *testing.T) {
	_, err := utils.FromCompressedString("not base64 !!!")
	assert.Error(t, err)

	// valid base64 but not gzip
	_, err = utils.FromCompressedString("aGVsbG8=")
	assert.Error(t, err)
}
