package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Session security constants
const (
	SessionIDLength = 64 // 64 character session ID
	CSRFTokenLength = 64
)

// GenerateSecureToken creates a cryptographically secure hex token of n characters
func GenerateSecureToken(n int) (string, error) {
	bytes := make([]byte, n/2) // hex encoding doubles the length
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// NewSession builds a session with fresh random id and anti-forgery token, created at t
func NewSession(t time.Time) (*Session, error) {
	id, err := GenerateSecureToken(SessionIDLength)
	if err != nil {
		return nil, err
	}
	token, err := GenerateSecureToken(CSRFTokenLength)
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, CSRFToken: token, CreatedAt: t, LastSeen: t}, nil
}
