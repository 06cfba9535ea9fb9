package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPluginRejectsMissingFile(t *testing.T) {
	_, err := loadPlugin(t.TempDir() + "/does-not-exist.so")
	require.Error(t, err)
	require.Contains(t, err.Error(), "open plugin")
}
