package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/model"
	"github.com/xxxsen/evstore/internal/store"
)

type SessionService struct {
	store *store.Store
}

func NewSessionService(st *store.Store) *SessionService {
	return &SessionService{store: st}
}

func (s *SessionService) Info(ctx context.Context, sessionID string) (*model.SessionInfo, error) {
	return s.store.Info(sessionID)
}

// Delete removes the session immediately. It reports success for unknown or
// already expired ids so callers can fire and forget.
func (s *SessionService) Delete(ctx context.Context, sessionID string) {
	s.store.Delete(sessionID)
	logutil.GetLogger(ctx).Info("session deleted", zap.String("session_id", sessionID))
}
