package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// TokenIssuer: подпись токенов агентов (auth.Issuer).
type TokenIssuer interface {
	Issue(id domain.Identity) (string, time.Time, error)
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AuthService struct {
	issuer TokenIssuer
}

func NewAuthService(issuer TokenIssuer) *AuthService {
	return &AuthService{issuer: issuer}
}

// GenerateToken выпускает Bearer-токен, которым агент представляется HTTP-транспорту шлюза.
func (s *AuthService) GenerateToken(agentID, agentName string) (*TokenResponse, error) {
	if agentID == "" {
		return nil, errors.New("agent id is required")
	}
	token, exp, err := s.issuer.Issue(domain.Identity{AgentID: agentID, AgentName: agentName})
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
	}, nil
}
