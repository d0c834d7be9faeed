package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rrepohub/rrepohub-backend/models"
	"github.com/rrepohub/rrepohub-backend/store"
	"github.com/rrepohub/rrepohub-backend/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("EMAIL_NOT_VERIFIED")
	ErrEmailTaken         = errors.New("user already exists")
	ErrUnsupportedIdP     = errors.New("unsupported identity provider")
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	LinkGoogle(ctx context.Context, id uuid.UUID, googleID string) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type VerificationStore interface {
	Create(ctx context.Context, v *models.EmailVerification) error
	Consume(ctx context.Context, token string, now time.Time) (uuid.UUID, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

type IdentityConfig struct {
	// VerifyURL is the endpoint a verification token is appended to.
	VerifyURL       string
	VerificationTTL time.Duration
	BcryptCost      int
}

// Identity owns credentials, email ownership checks and federated sign-in.
type Identity struct {
	users  UserStore
	tokens VerificationStore
	mailer Mailer
	cfg    IdentityConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewIdentity(users UserStore, tokens VerificationStore, mailer Mailer, cfg IdentityConfig, log *zap.Logger) *Identity {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Identity{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Register creates an unverified account and mails a verification link.
// The caller is not signed in. If the mail cannot be sent the account is
// removed again.
func (s *Identity) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	err := validation.ValidateRegistration(validation.Registration{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Username:     strings.TrimSpace(in.Username),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		// Leave no unverifiable account behind, so the address can register
		// again. The request context may be the reason the send failed.
		if derr := s.users.Delete(context.WithoutCancel(ctx), user.ID); derr != nil {
			s.log.Error("failed to roll back registration", zap.String("user_id", user.ID.String()), zap.Error(derr))
		}
		return nil, err
	}
	return user, nil
}

// Login checks credentials. An unverified account fails with
// ErrEmailNotVerified and no session is granted.
func (s *Identity) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return user, nil
}

func (s *Identity) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	userID, err := s.tokens.Consume(ctx, token, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if err := s.users.MarkVerified(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, userID)
}

// ResendVerification mails a fresh link. Unknown or already verified
// addresses are ignored so the endpoint does not reveal which accounts exist.
func (s *Identity) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.tokens.DeleteForUser(ctx, user.ID); err != nil {
		return err
	}
	return s.sendVerification(ctx, user)
}

func (s *Identity) CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.Get(ctx, id)
}

// FederatedUser is the identity asserted by an external provider.
type FederatedUser struct {
	Provider      string
	UserID        string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool
}

// FederatedSignIn finds the account for a provider identity, linking by
// email or creating one as needed.
func (s *Identity) FederatedSignIn(ctx context.Context, fu FederatedUser) (*models.User, error) {
	if fu.Provider != "google" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIdP, fu.Provider)
	}
	if !fu.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	user, err := s.users.GetByGoogleID(ctx, fu.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(fu.Email)
	user, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		return s.users.LinkGoogle(ctx, user.ID, fu.UserID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	provider := fu.Provider
	googleID := fu.UserID
	user = &models.User{
		Email:         email,
		EmailVerified: true,
		Username:      DisplayName(email),
		FirstName:     fu.FirstName,
		LastName:      fu.LastName,
		GoogleID:      &googleID,
		Provider:      &provider,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Identity) sendVerification(ctx context.Context, user *models.User) error {
	token, err := randomToken()
	if err != nil {
		return err
	}
	v := &models.EmailVerification{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.cfg.VerificationTTL),
	}
	if err := s.tokens.Create(ctx, v); err != nil {
		return err
	}

	link := s.cfg.VerifyURL + "?token=" + url.QueryEscape(token)
	body := "Welcome to RRepoHUB!\n\nVerify your email address to activate your account:\n\n" + link + "\n"
	if err := s.mailer.Send(ctx, user.Email, "Verify your RRepoHUB account", body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	s.log.Info("verification email sent", zap.String("user_id", user.ID.String()))
	return nil
}

// DisplayName is the uploader name shown for an account: the local part of
// its email, or Anonymous.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Anonymous"
	}
	return local
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
