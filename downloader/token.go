package downloader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const tokenFileName = "token_info.json"

// TokenInfo stores token data with expiry time
type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id,omitempty"`
}

func tokenInfoFrom(t *oauth2.Token) TokenInfo {
	info := TokenInfo{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
	if id, ok := t.Extra("user_id").(string); ok {
		info.UserID = id
	}
	return info
}

func (t TokenInfo) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.ExpiresAt,
	}
}

// saveTokenInfo saves the token information to a file
func saveTokenInfo(dataDir string, t *oauth2.Token) error {
	tokenData, err := json.MarshalIndent(tokenInfoFrom(t), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, tokenFileName), tokenData, 0600)
}

// loadTokenInfo loads token information from a file
func loadTokenInfo(dataDir string) (*oauth2.Token, error) {
	tokenData, err := os.ReadFile(filepath.Join(dataDir, tokenFileName))
	if err != nil {
		return nil, err
	}
	var info TokenInfo
	if err := json.Unmarshal(tokenData, &info); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", tokenFileName, err)
	}
	if info.RefreshToken == "" && info.AccessToken == "" {
		return nil, fmt.Errorf("%s holds no token", tokenFileName)
	}
	return info.token(), nil
}

// savingTokenSource writes every refreshed token back to disk so the next
// start does not need the browser.
type savingTokenSource struct {
	src     oauth2.TokenSource
	dataDir string
	log     *zap.Logger

	mu   sync.Mutex
	last string
}

func newSavingTokenSource(src oauth2.TokenSource, dataDir string, initial *oauth2.Token, log *zap.Logger) *savingTokenSource {
	return &savingTokenSource{src: src, dataDir: dataDir, log: log, last: initial.AccessToken}
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != s.last {
		s.last = t.AccessToken
		if err := saveTokenInfo(s.dataDir, t); err != nil {
			s.log.Warn("failed to save refreshed token", zap.Error(err))
		} else {
			s.log.Info("access token refreshed", zap.Time("expires_at", t.Expiry))
		}
	}
	return t, nil
}
