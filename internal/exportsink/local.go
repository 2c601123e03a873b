package exportsink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localSink struct {
	dir string
}

func init() {
	Register("local", createLocalSink)
}

func createLocalSink(args interface{}) (Sink, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local sink dir is required")
	}
	return &localSink{dir: cfg.Dir}, nil
}

func (s *localSink) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	_ = ctx
	if strings.Contains(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid export key")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, key)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", err
	}
	return path, nil
}
