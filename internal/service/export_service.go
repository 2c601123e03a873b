package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/exportsink"
	"github.com/xxxsen/evstore/internal/model"
	appErr "github.com/xxxsen/evstore/internal/pkg/errors"
	"github.com/xxxsen/evstore/internal/store"
)

type ExportService struct {
	store *store.Store
	sink  exportsink.Sink
}

func NewExportService(st *store.Store, sink exportsink.Sink) *ExportService {
	return &ExportService{store: st, sink: sink}
}

// Stream writes the session's chunks to w as JSON lines, one record per
// chunk. It works off a point-in-time snapshot and encodes record by
// record, so sessions of any size stream without being buffered whole.
func (s *ExportService) Stream(ctx context.Context, sessionID string, includeVectors bool, w io.Writer) error {
	snap, err := s.store.Snapshot(sessionID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for i, chunk := range snap.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := model.ExportRecord{
			SessionID:  snap.SessionID,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			Metadata:   chunk.Metadata,
		}
		if includeVectors {
			record.Vector = snap.Vectors[i]
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// Push streams the same JSONL export into the configured sink and returns
// the stored location. Fails when no sink is configured.
func (s *ExportService) Push(ctx context.Context, sessionID string, includeVectors bool) (string, error) {
	if s.sink == nil {
		return "", fmt.Errorf("no export sink configured: %w", appErr.ErrInvalid)
	}
	key := fmt.Sprintf("%s-%s.jsonl", sessionID, time.Now().UTC().Format("20060102-150405"))
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.Stream(ctx, sessionID, includeVectors, pw))
	}()
	location, err := s.sink.Put(ctx, key, pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	logutil.GetLogger(ctx).Info("session exported",
		zap.String("session_id", sessionID),
		zap.String("location", location),
	)
	return location, nil
}
