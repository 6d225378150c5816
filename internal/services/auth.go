package services

import (
	"context"
	"errors"
	"fmt"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/jwt"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/session"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalidCredentials 邮箱或密码错误
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthenticated)

// AuthService 登录与会话
type AuthService struct {
	db       *gorm.DB
	sessions session.Store
	jwt      *jwt.JWTManager
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

func NewAuthService(db *gorm.DB, sessions session.Store, jwtManager *jwt.JWTManager) *AuthService {
	return &AuthService{db: db, sessions: sessions, jwt: jwtManager}
}

// Login 校验邮箱密码并创建会话
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	users := NewUserService(s.db, s.sessions)
	user, err := users.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDeactivated
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.GetLogger().WithField("user_id", user.ID).Warnf("Failed to update last login: %v", err)
	}
	logger.GetLogger().WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User logged in")
	return result, nil
}

// Authenticate 校验令牌与会话，返回请求主体
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.jwt.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrUnauthenticated)
	}

	userID, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, fmt.Errorf("session expired: %w", apperrors.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if userID != claims.UserID {
		return nil, fmt.Errorf("session mismatch: %w", apperrors.ErrUnauthenticated)
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user not found: %w", apperrors.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	return &Principal{User: &user, SessionID: claims.SessionID}, nil
}

// Logout 终止当前会话
func (s *AuthService) Logout(ctx context.Context, p *Principal) error {
	if p == nil || p.SessionID == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, p.SessionID)
}

// Refresh 签发新会话并终止旧会话
func (s *AuthService) Refresh(ctx context.Context, p *Principal) (*LoginResult, error) {
	if p == nil || p.User == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if !p.User.IsActive {
		_ = s.sessions.Revoke(ctx, p.SessionID)
		return nil, apperrors.ErrAccountDeactivated
	}
	result, err := s.issue(ctx, p.User)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Revoke(ctx, p.SessionID); err != nil {
		logger.GetLogger().WithField("session_id", p.SessionID).Warnf("Failed to revoke old session: %v", err)
	}
	return result, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*LoginResult, error) {
	ttl := s.jwt.GetTokenDuration()
	sessionID, err := s.sessions.Create(ctx, user.ID, ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, expiresAt, err := s.jwt.GenerateToken(user.ID, user.Email, sessionID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, sessionID)
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt.Unix(), User: user}, nil
}
