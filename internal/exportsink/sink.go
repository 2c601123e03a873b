package exportsink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xxxsen/evstore/internal/config"
)

// Sink receives a finished export stream. Put consumes r fully and returns
// the location the object ended up at.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
}

type Factory func(args interface{}) (Sink, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(strings.TrimSpace(name))] = factory
}

// New builds the configured sink; a "none" type yields a nil sink, meaning
// push-style export is disabled.
func New(cfg config.ExportConfig) (Sink, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Type))
	if kind == "" || kind == "none" {
		return nil, nil
	}
	mu.RLock()
	factory := registry[kind]
	mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported export sink: %s", cfg.Type)
	}
	var args interface{}
	switch kind {
	case "local":
		args = map[string]interface{}{"dir": cfg.Dir}
	case "s3":
		args = cfg.S3
	default:
		args = cfg
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("export sink config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode export sink config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode export sink config: %w", err)
	}
	return nil
}
