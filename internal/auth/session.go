package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/studentms/internal/model"
)

// EstablishSession はユーザーのセッションを作成する。セッションにはユーザーIDのみを保存する。
func (s *Service) EstablishSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL()),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: failed to save session: %w", ErrStoreFailure, err)
	}

	return session, nil
}

// ResolveSession はセッションIDから現在のユーザーを取得する。
// ユーザー情報はセッションに保持せず、毎回ストアから再取得する。
// ユーザーが削除済みの場合はセッションを破棄してErrSessionUserGoneを返す。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		s.metrics.RecordSessionFailure("not_found")
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		s.metrics.RecordSessionFailure("store")
		return nil, fmt.Errorf("%w: failed to find session: %w", ErrStoreFailure, err)
	}
	if session == nil {
		s.metrics.RecordSessionFailure("not_found")
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		s.metrics.RecordSessionFailure("store")
		return nil, fmt.Errorf("%w: failed to find user: %w", ErrStoreFailure, err)
	}
	if user == nil {
		s.metrics.RecordSessionFailure("user_gone")
		if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
			slog.Warn("failed to delete orphaned session",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		return nil, ErrSessionUserGone
	}

	return user, nil
}
