package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopfront/internal/domain"
	tokenrepo "shopfront/internal/repository/token"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

type userRepo interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, u domain.User) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}

type cartRepo interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service handles registration, login and profile management.
type Service struct {
	repo        userRepo
	carts       cartRepo
	tx          transactor
	tokens      *tokenManager
	accessTTL   time.Duration
	refreshTTL  time.Duration
	passwordMin int
	logger      *zap.Logger
}

// New creates a Service. Zero TTLs fall back to 10 hours for access and 7 days for refresh tokens.
func New(repo userRepo, carts cartRepo, tokens tokenrepo.Repository, tx transactor, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if accessTTL <= 0 {
		accessTTL = 10 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:        repo,
		carts:       carts,
		tx:          tx,
		tokens:      newTokenManager(tokens),
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		passwordMin: 8,
		logger:      logger,
	}
}

// Profile carries the editable user fields.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
	City      string `json:"city"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Profile
}

// Tokens is the pair handed out on register and login.
type Tokens struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Register creates the user together with an empty cart and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, Tokens, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, Tokens{}, fmt.Errorf("%w: valid email required", domain.ErrInvalidArgument)
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, Tokens{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Tokens{}, err
	}

	var created *domain.User
	var tokens Tokens
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.repo.Create(ctx, domain.User{
			Email:        email,
			PasswordHash: string(hashed),
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			Phone:        strings.TrimSpace(in.Phone),
			Country:      strings.TrimSpace(in.Country),
			City:         strings.TrimSpace(in.City),
		})
		if err != nil {
			return err
		}
		if _, err := s.carts.GetOrCreate(ctx, u.ID); err != nil {
			return err
		}
		tokens, err = s.issue(ctx, u.ID)
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, Tokens{}, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", created.ID))
	return created, tokens, nil
}

// Login validates credentials and returns issued tokens plus the user.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, Tokens, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, Tokens{}, ErrInvalidCredentials
		}
		return nil, Tokens{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		s.logger.Warn("invalid credentials", zap.Int64("user_id", u.ID))
		return nil, Tokens{}, ErrInvalidCredentials
	}
	tokens, err := s.issue(ctx, u.ID)
	if err != nil {
		return nil, Tokens{}, err
	}
	return u, tokens, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	userID, ok := s.tokens.Validate(ctx, refreshToken, tokenrepo.KindRefresh)
	if !ok {
		return Tokens{}, ErrInvalidToken
	}
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Tokens{}, ErrInvalidToken
		}
		return Tokens{}, err
	}
	access, err := s.tokens.Issue(ctx, userID, tokenrepo.KindAccess, s.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access}, nil
}

// Logout revokes an access token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	return s.tokens.Revoke(ctx, accessToken)
}

// LookupByToken returns the user bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, accessToken string) (*domain.User, error) {
	userID, ok := s.tokens.Validate(ctx, accessToken, tokenrepo.KindAccess)
	if !ok {
		return nil, ErrInvalidToken
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, p Profile) (*domain.User, error) {
	return s.repo.UpdateProfile(ctx, domain.User{
		ID:        userID,
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Phone:     strings.TrimSpace(p.Phone),
		Country:   strings.TrimSpace(p.Country),
		City:      strings.TrimSpace(p.City),
	})
}

// Delete removes the user; cart, favorites, orders and tokens go with it.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int64("user_id", userID))
	return nil
}

// PurgeExpiredTokens drops every token past its expiry and reports how many went.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.Purge(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired tokens purged", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) issue(ctx context.Context, userID int64) (Tokens, error) {
	access, err := s.tokens.Issue(ctx, userID, tokenrepo.KindAccess, s.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.tokens.Issue(ctx, userID, tokenrepo.KindRefresh, s.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func validatePassword(p string, min int) error {
	if len(p) < min {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidArgument, min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number", domain.ErrInvalidArgument)
	}
	return nil
}
