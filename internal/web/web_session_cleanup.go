package web

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSessionCleanup starts a background goroutine that removes idle sessions
// every CleanupInterval until Shutdown is called.
func (s *WebServer) StartSessionCleanup() {
	interval := s.Config.CleanupInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanupSessions()
			}
		}
	}()
	s.Logger.Info("[WEB]: Started session cleanup background task", zap.Duration("interval", interval))
}

func (s *WebServer) cleanupSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.DB.CleanupExpiredSessions(ctx, s.Config.SessionTimeout)
	if err != nil {
		s.Logger.Warn("[WEB]: Error cleaning up expired sessions", zap.Error(err))
		return
	}
	s.metrics.sessionsExpired.Add(float64(n))
	s.Logger.Debug("[WEB]: Session cleanup completed", zap.Int64("removed", n))
}
