package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
	"github.com/smallbiznis/apicredits/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	apiKeyPrefix              = "sk_"
	apiKeySecretBytes         = 24
	apiKeyHintLength          = 4
	apiKeyRotationGracePeriod = 24 * time.Hour
)

var allowedScopes = map[string]struct{}{
	apikeydomain.ScopeRequestsWrite: {},
}

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  apikeydomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) apikeydomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: clk,
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]apikeydomain.Response, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, userID string, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key, plain, err := s.newKey(userID, name, scopes, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, key); err != nil {
		return nil, err
	}

	s.log.Info("api key created", zap.String("user_id", userID), zap.String("key_id", key.KeyID))
	return &apikeydomain.SecretResponse{Response: s.toResponse(key), Key: plain}, nil
}

func (s *Service) Rotate(ctx context.Context, userID, keyID string) (*apikeydomain.SecretResponse, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return nil, apikeydomain.ErrInvalidKeyID
	}

	current, err := s.repo.FindByKeyID(ctx, userID, trimmed)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !current.Usable(now) {
		return nil, apikeydomain.ErrNotFound
	}

	grace := now.Add(apiKeyRotationGracePeriod)
	current.ExpiresAt = &grace
	current.UpdatedAt = now

	next, plain, err := s.newKey(userID, current.Name, current.Scopes, now)
	if err != nil {
		return nil, err
	}
	rotatedFrom := current.KeyID
	next.RotatedFromKeyID = &rotatedFrom

	if err := s.repo.Rotate(ctx, current, next); err != nil {
		return nil, err
	}

	s.log.Info("api key rotated",
		zap.String("user_id", userID),
		zap.String("key_id", next.KeyID),
		zap.String("rotated_from", rotatedFrom),
	)
	return &apikeydomain.SecretResponse{Response: s.toResponse(next), Key: plain}, nil
}

// Revoke deactivates a key. Revoking an unknown or already revoked key succeeds.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByKeyID(ctx, userID, trimmed)
	if err != nil {
		return err
	}
	if key == nil || !key.IsActive {
		return nil
	}

	now := s.clock.Now()
	key.IsActive = false
	key.UpdatedAt = now
	if key.ExpiresAt == nil || key.ExpiresAt.After(now) {
		key.ExpiresAt = &now
	}
	if err := s.repo.Update(ctx, key); err != nil {
		return err
	}

	s.log.Info("api key revoked", zap.String("user_id", userID), zap.String("key_id", key.KeyID))
	return nil
}

// Authenticate resolves a presented secret to its active key and stamps LastUsedAt.
func (s *Service) Authenticate(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		return nil, apikeydomain.ErrUnauthorized
	}

	key, err := s.repo.FindByHash(ctx, apikeydomain.HashAPIKey(raw))
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !key.Usable(now) {
		return nil, apikeydomain.ErrUnauthorized
	}

	if err := s.repo.TouchLastUsed(ctx, key.KeyID, now); err != nil {
		s.log.Warn("failed to record api key usage", zap.String("key_id", key.KeyID), zap.Error(err))
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

func (s *Service) newKey(userID, name string, scopes []string, now time.Time) (*apikeydomain.APIKey, string, error) {
	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateAPIKey(keyID)
	if err != nil {
		return nil, "", err
	}
	return &apikeydomain.APIKey{
		ID:        id,
		KeyID:     keyID,
		UserID:    userID,
		Name:      name,
		Scopes:    scopes,
		KeyHash:   hash,
		KeyHint:   plain[len(plain)-apiKeyHintLength:],
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, plain, nil
}

func (s *Service) toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		ID:               key.KeyID,
		Name:             key.Name,
		Key:              apikeydomain.MaskKey(key.KeyID, key.KeyHint),
		Scopes:           append([]string(nil), key.Scopes...),
		Status:           status(key, s.clock.Now()),
		Created:          key.CreatedAt,
		LastUsed:         key.LastUsedAt,
		ExpiresAt:        key.ExpiresAt,
		RotatedFromKeyID: key.RotatedFromKeyID,
	}
}

func status(key *apikeydomain.APIKey, now time.Time) string {
	switch {
	case !key.IsActive:
		return apikeydomain.StatusInactive
	case !key.Usable(now):
		return apikeydomain.StatusExpired
	default:
		return apikeydomain.StatusActive
	}
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", apikeydomain.ErrInvalidUserID
	}
	return userID, nil
}

func normalizeScopes(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return []string{apikeydomain.ScopeRequestsWrite}, nil
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.ToLower(strings.TrimSpace(scope))
		if _, ok := allowedScopes[scope]; !ok {
			return nil, apikeydomain.ErrInvalidScope
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out, nil
}

func generateAPIKey(keyID string) (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	suffix := strings.ToLower(strings.TrimPrefix(keyID, "key_"))
	plain := fmt.Sprintf("%s%s_%s", apiKeyPrefix, suffix, hex.EncodeToString(secret))
	return plain, apikeydomain.HashAPIKey(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
