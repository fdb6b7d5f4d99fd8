package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// QRService issues short-lived share codes for projects. A scanned
// code resolves to the project and a suggested pledge amount; codes
// are single-use and expire from Redis after 24 hours.
type QRService struct {
	db       *sql.DB
	redis    *redis.Client
	projects *ProjectService
}

func NewQRService(db *sql.DB, redis *redis.Client) *QRService {
	return &QRService{
		db:       db,
		redis:    redis,
		projects: NewProjectService(db),
	}
}

func (s *QRService) GenerateShareCode(ctx context.Context, projectID int, suggestedAmount int64) (string, string, error) {
	// Redis is optional at startup; without it no code can be stored.
	if s.redis == nil {
		return "", "", ErrShareCodesUnavailable
	}

	if _, err := s.projects.GetByID(projectID); err != nil {
		return "", "", err
	}

	qrData := map[string]any{
		"projectId":       projectID,
		"suggestedAmount": suggestedAmount,
		"timestamp":       time.Now().Unix(),
		"nonce":           s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	shareCode := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", shareCode)
	if err := s.redis.Set(ctx, key, jsonData, 24*time.Hour).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(shareCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return shareCode, qrImage, nil
}

func (s *QRService) ResolveShareCode(ctx context.Context, shareCode string) (map[string]any, error) {
	if s.redis == nil {
		return nil, ErrShareCodesUnavailable
	}

	key := fmt.Sprintf("qr:%s", shareCode)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired share code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
