package common

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPtr(t *testing.T) {
	var valueInt int = 42
	gotInt := ToPtr(valueInt)
	assert.Equal(t, valueInt, *gotInt)

	var valueBool bool = true
	gotBool := ToPtr(valueBool)
	assert.Equal(t, valueBool, *gotBool)

	var valueStr string = "hello"
	gotStr := ToPtr(valueStr)
	assert.Equal(t, valueStr, *gotStr)
}

func TestNopSeekCloser(t *testing.T) {
	rsc := NopSeekCloser(strings.NewReader("content"))

	data, err := io.ReadAll(rsc)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	_, err = rsc.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, rsc.Close())
}
