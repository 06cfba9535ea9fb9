package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadManifestReadsLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o644))

	data, manifestDir, err := loadManifest(context.Background(), path)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
	require.Equal(t, dir, manifestDir)
}

func TestLoadManifestReadsFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o644))

	data, manifestDir, err := loadManifest(context.Background(), "file://"+path)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
	require.Equal(t, dir, manifestDir)
}

func TestLoadManifestFetchesHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	data, manifestDir, err := loadManifest(context.Background(), srv.URL+"/manifests/flow.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
	require.Equal(t, srv.URL+"/manifests", manifestDir)
}

func TestLoadManifestRejectsHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := loadManifest(context.Background(), srv.URL+"/flow.json")
	require.Error(t, err)
}

func TestLoadManifestRejectsUnsupportedScheme(t *testing.T) {
	_, _, err := loadManifest(context.Background(), "ftp://example.com/flow.json")
	require.Error(t, err)
}
