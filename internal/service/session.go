// Package service contains the application services: sessions, sources,
// imports, funnel management, messaging and templates.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/port"
)

var sessionTracer = otel.Tracer("service/session")

const (
	bcryptCost        = 12
	minPasswordLength = 6
)

type session struct {
	userID string
	timer  *time.Timer
}

// SessionService orchestrates authentication flows. Each login opens a
// server-side session that dies after the inactivity timeout; the JWT only
// proves who the caller is, the session decides whether they are still in.
type SessionService struct {
	users      port.UserStore
	cache      port.Cache[*domain.User]
	metrics    *observability.Metrics
	jwtSecret  []byte
	accessTTL  time.Duration
	inactivity time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionService creates a session service.
func NewSessionService(users port.UserStore, cache port.Cache[*domain.User], metrics *observability.Metrics, jwtSecret string, accessTTL, inactivity time.Duration, logger *zap.Logger) *SessionService {
	return &SessionService{
		users:      users,
		cache:      cache,
		metrics:    metrics,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		inactivity: inactivity,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

// ============================================================
// Register -- POST /v1/auth/register
// ============================================================

func (s *SessionService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Register")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "a valid email is required"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("password must have at least %d characters", minPasswordLength)}
	}

	existing, _, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user, string(hash)); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", email),
	)

	return &domain.RegisterResponse{UserID: user.ID, Email: email}, nil
}

// ============================================================
// Login -- POST /v1/auth/login
// ============================================================

func (s *SessionService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, hash, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: failed password attempt", zap.String("user_id", user.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	sessionID := s.openSession(user.ID)

	accessToken, err := s.signAccessToken(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("session_id", sessionID),
	)

	return &domain.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        user,
	}, nil
}

// ============================================================
// Logout -- POST /v1/auth/logout
// ============================================================

func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	_, span := sessionTracer.Start(ctx, "SessionService.Logout")
	defer span.End()

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		sess.timer.Stop()
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("user logged out",
			zap.String("user_id", sess.userID),
			zap.String("session_id", sessionID),
		)
	}
	return nil
}

// ============================================================
// Me -- GET /v1/auth/me
// ============================================================

func (s *SessionService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Me")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if user, ok := s.cache.Get(userID); ok {
		s.metrics.IncrCacheHit("profile")
		return user, nil
	}
	s.metrics.IncrCacheMiss("profile")

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(userID, user)
	return user, nil
}

// ============================================================
// Session registry
// ============================================================

// openSession registers a new session and arms its inactivity timer.
func (s *SessionService) openSession(userID string) string {
	sessionID := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = &session{
		userID: userID,
		timer:  time.AfterFunc(s.inactivity, func() { s.expire(sessionID) }),
	}
	return sessionID
}

func (s *SessionService) expire(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("session expired after inactivity",
			zap.String("user_id", sess.userID),
			zap.String("session_id", sessionID),
			zap.Duration("timeout", s.inactivity),
		)
	}
}

// Touch re-arms the inactivity timer. Any authenticated request counts as
// activity. Returns false when the session has already expired.
func (s *SessionService) Touch(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	sess.timer.Reset(s.inactivity)
	return true
}

// Active reports whether a session is still alive without rearming it.
func (s *SessionService) Active(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	return ok
}

// Close stops every session timer. Called on shutdown.
func (s *SessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		sess.timer.Stop()
		delete(s.sessions, id)
	}
}

// ============================================================
// Tokens -- used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub       string `json:"sub"`
	SessionID string `json:"sid"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

func (s *SessionService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}

	return claims, nil
}

func (s *SessionService) signAccessToken(userID, sessionID string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:       userID,
		SessionID: sessionID,
		Type:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "martpal-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
