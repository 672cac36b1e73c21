package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/pkg/helper"
)

// MinPasswordLength is the shortest password accepted at sign-up and reset
const MinPasswordLength = 6

// Config holds the provider settings
type Config struct {
	Secret        string
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	// PublicURL prefixes the links sent in password reset mails
	PublicURL string
	// IsAdminEmail grants the admin role; nil means nobody is an admin
	IsAdminEmail func(email string) bool
	// SignInRate and SignInBurst bound sign-in attempts per email address
	SignInRate  float64
	SignInBurst int
	// HashCost is the bcrypt cost; zero selects bcrypt.DefaultCost
	HashCost int
}

// Service is the identity provider shared by every client
type Service struct {
	store   database.DocumentStore
	tokens  tokenIssuer
	mailer  Mailer
	limiter *helper.RateLimiter
	config  Config
	logger  logrus.FieldLogger

	// serializes sign-ups so two accounts never share an email
	signupMu sync.Mutex
}

// NewService creates the provider on top of the users collection of store
func NewService(store database.DocumentStore, mailer Mailer, config Config, logger logrus.FieldLogger) (*Service, error) {
	if config.Secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = time.Hour
	}
	if config.HashCost == 0 {
		config.HashCost = bcrypt.DefaultCost
	}
	if config.SignInRate <= 0 {
		config.SignInRate = 1
	}
	if config.SignInBurst <= 0 {
		config.SignInBurst = 5
	}

	return &Service{
		store:   store,
		tokens:  tokenIssuer{secret: []byte(config.Secret), now: time.Now},
		mailer:  mailer,
		limiter: helper.NewRateLimiter(config.SignInRate, config.SignInBurst),
		config:  config,
		logger:  logger,
	}, nil
}

// SignUp creates an account and signs it in, returning the session token
func (s *Service) SignUp(ctx context.Context, email, password string) (models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.User{}, "", err
	}
	if len(password) < MinPasswordLength {
		return models.User{}, "", newError(CodeWeakPassword, fmt.Sprintf("Password should be at least %d characters", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.HashCost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	s.signupMu.Lock()
	defer s.signupMu.Unlock()

	if _, found, err := s.findByEmail(ctx, email); err != nil {
		return models.User{}, "", err
	} else if found {
		return models.User{}, "", newError(CodeEmailAlreadyInUse, "An account already exists for this email")
	}

	role := models.RoleCustomer
	if s.isAdminEmail(email) {
		role = models.RoleAdmin
	}
	uid := uuid.NewString()
	now := time.Now().UTC()
	err = s.store.Create(ctx, database.CollectionUsers, uid, map[string]interface{}{
		"email":        email,
		"displayName":  "",
		"passwordHash": string(hash),
		"role":         string(role),
		"resetNonce":   uuid.NewString(),
		"createdAt":    now,
	})
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to create user: %w", err)
	}

	user := models.User{UID: uid, Email: email, Role: role}
	token, err := s.issueSession(user, 0)
	if err != nil {
		return models.User{}, "", err
	}
	s.logger.WithFields(logrus.Fields{"uid": uid, "role": role}).Info("Account created")
	return user, token, nil
}

// SignIn checks the credentials and returns the user with a fresh session token
func (s *Service) SignIn(ctx context.Context, email, password string) (models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.User{}, "", err
	}
	if !s.limiter.Allow("signin:" + email) {
		return models.User{}, "", newError(CodeTooManyRequests, "Too many sign-in attempts, try again later")
	}

	doc, found, err := s.findByEmail(ctx, email)
	if err != nil {
		return models.User{}, "", err
	}
	if !found {
		return models.User{}, "", newError(CodeInvalidCredential, "Invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(doc.String("passwordHash")), []byte(password)) != nil {
		return models.User{}, "", newError(CodeInvalidCredential, "Invalid email or password")
	}

	user := s.userFromDocument(doc)
	token, err := s.issueSession(user, doc.Int("sessionGeneration"))
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

// VerifySession resolves a session token to its current user
func (s *Service) VerifySession(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.parse(token, purposeSession)
	if err != nil {
		return models.User{}, newError(CodeInvalidToken, "Session is invalid or expired")
	}

	doc, err := s.store.Get(ctx, database.CollectionUsers, claims.Subject)
	if errors.Is(err, database.ErrNotFound) {
		return models.User{}, newError(CodeUserNotFound, "Account no longer exists")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}

	// Every password reset starts a new session generation
	if claims.Generation != doc.Int("sessionGeneration") {
		return models.User{}, newError(CodeInvalidToken, "Session is invalid or expired")
	}
	return s.userFromDocument(doc), nil
}

// UpdateProfile sets the display name of uid
func (s *Service) UpdateProfile(ctx context.Context, uid, displayName string) (models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return models.User{}, newError(CodeMissingDisplayName, "Display name is required")
	}

	err := s.store.Update(ctx, database.CollectionUsers, uid, map[string]interface{}{"displayName": displayName})
	if errors.Is(err, database.ErrNotFound) {
		return models.User{}, newError(CodeUserNotFound, "Account no longer exists")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to update profile: %w", err)
	}

	doc, err := s.store.Get(ctx, database.CollectionUsers, uid)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return s.userFromDocument(doc), nil
}

// SendPasswordReset mails a single-use reset link to the account of email
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if !s.limiter.Allow("reset:" + email) {
		return newError(CodeTooManyRequests, "Too many reset requests, try again later")
	}

	doc, found, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		return newError(CodeUserNotFound, "No account exists for this email")
	}

	token, err := s.tokens.issue(Claims{
		Email:            email,
		Purpose:          purposeReset,
		Nonce:            doc.String("resetNonce"),
		RegisteredClaims: registered(doc.ID),
	}, s.config.ResetTokenTTL)
	if err != nil {
		return err
	}

	link := strings.TrimRight(s.config.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	msg := Message{
		To:      email,
		Subject: "Reset your password",
		Body:    "Follow this link to choose a new password: " + link,
		Link:    link,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	s.logger.WithField("uid", doc.ID).Info("Password reset requested")
	return nil
}

// ConfirmPasswordReset sets a new password using a token from SendPasswordReset.
// Existing sessions and other reset links of the account stop working.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.parse(token, purposeReset)
	if err != nil {
		return newError(CodeInvalidToken, "Reset link is invalid or expired")
	}
	if len(newPassword) < MinPasswordLength {
		return newError(CodeWeakPassword, fmt.Sprintf("Password should be at least %d characters", MinPasswordLength))
	}

	doc, err := s.store.Get(ctx, database.CollectionUsers, claims.Subject)
	if errors.Is(err, database.ErrNotFound) {
		return newError(CodeUserNotFound, "Account no longer exists")
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if doc.String("resetNonce") != claims.Nonce {
		return newError(CodeInvalidToken, "Reset link has already been used")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.HashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	err = s.store.Update(ctx, database.CollectionUsers, doc.ID, map[string]interface{}{
		"passwordHash":      string(hash),
		"resetNonce":        uuid.NewString(),
		"sessionGeneration": doc.Int("sessionGeneration") + 1,
		"passwordChangedAt": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.logger.WithField("uid", doc.ID).Info("Password reset completed")
	return nil
}

func (s *Service) issueSession(user models.User, generation int) (string, error) {
	return s.tokens.issue(Claims{
		Email:            user.Email,
		Role:             string(user.Role),
		Purpose:          purposeSession,
		Generation:       generation,
		RegisteredClaims: registered(user.UID),
	}, s.config.SessionTTL)
}

func (s *Service) findByEmail(ctx context.Context, email string) (database.Document, bool, error) {
	docs, err := s.store.Query(ctx, database.CollectionUsers, database.Query{
		Where: []database.Filter{{Field: "email", Value: email}},
		Limit: 1,
	})
	if err != nil {
		return database.Document{}, false, fmt.Errorf("failed to look up user: %w", err)
	}
	if len(docs) == 0 {
		return database.Document{}, false, nil
	}
	return docs[0], true, nil
}

func (s *Service) userFromDocument(doc database.Document) models.User {
	email := doc.String("email")
	role := models.Role(doc.String("role"))
	if s.isAdminEmail(email) {
		role = models.RoleAdmin
	} else if role == "" {
		role = models.RoleCustomer
	}
	return models.User{
		UID:         doc.ID,
		DisplayName: doc.String("displayName"),
		Email:       email,
		Role:        role,
	}
}

func (s *Service) isAdminEmail(email string) bool {
	return s.config.IsAdminEmail != nil && s.config.IsAdminEmail(email)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email {
		return "", newError(CodeInvalidEmail, "Email address is badly formatted")
	}
	return email, nil
}
