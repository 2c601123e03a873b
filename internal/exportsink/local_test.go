package exportsink

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/evstore/internal/config"
)

func TestLocalSinkPut_WritesFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(config.ExportConfig{Type: "local", Dir: dir})
	require.NoError(t, err)
	require.NotNil(t, sink)

	location, err := sink.Put(context.Background(), "s1.jsonl", strings.NewReader("{\"a\":1}\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	require.Equal(t, "{\"a\":1}\n", string(data))
}

func TestLocalSinkPut_RejectsPathTraversalKeys(t *testing.T) {
	sink, err := New(config.ExportConfig{Type: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	_, err = sink.Put(context.Background(), "../escape.jsonl", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNew_NoneDisablesSink(t *testing.T) {
	sink, err := New(config.ExportConfig{Type: "none"})
	require.NoError(t, err)
	require.Nil(t, sink)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.ExportConfig{Type: "ftp"})
	require.Error(t, err)
}
