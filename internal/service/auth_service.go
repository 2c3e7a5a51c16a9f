package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"instafeed/internal/apperr"
	"instafeed/internal/config"
	"instafeed/internal/events"
	"instafeed/internal/models"
	"instafeed/internal/repository"
)

type SignUpRequest struct {
	Handle   string
	Email    string
	Password string
}

type AuthService interface {
	SignUp(ctx context.Context, req SignUpRequest) (*models.Session, error)
	LogIn(ctx context.Context, email, password string) (*models.Session, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*models.Session, error)
	LogOut(ctx context.Context) error
	// ValidateToken returns the user id an access token was issued to.
	ValidateToken(tokenString string) (string, error)
}

type authService struct {
	accountRepo repository.AccountRepository
	profileRepo repository.ProfileRepository
	hub         events.Publisher
	clock       clock.Clock
	cfg         *config.Config
}

func NewAuthService(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	hub events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) AuthService {
	return &authService{
		accountRepo: accountRepo,
		profileRepo: profileRepo,
		hub:         hub,
		clock:       clk,
		cfg:         cfg,
	}
}

func (s *authService) SignUp(ctx context.Context, req SignUpRequest) (*models.Session, error) {
	handle := strings.TrimSpace(req.Handle)
	email := strings.TrimSpace(req.Email)
	if isBlank(handle, email, req.Password) {
		return nil, apperr.Validation("please fill all fields")
	}

	// handle must be free before the account exists
	existing, err := s.profileRepo.GetByHandle(ctx, handle)
	if err == nil && existing != nil {
		return nil, apperr.Conflict("username %s already exists", handle)
	}
	if err != nil && !apperr.IsNotFound(err) {
		return nil, errors.Annotate(err, "checking username")
	}

	account := &models.Account{Email: email}
	if err := s.accountRepo.CreateAccount(ctx, account, req.Password); err != nil {
		return nil, errors.Annotate(err, "error creating account")
	}

	profile := &models.UserProfile{
		UserID:       account.AccountID,
		Handle:       handle,
		FollowingIDs: []string{},
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, errors.Annotate(err, "creating profile")
	}

	logger.Infof("signed up %s as @%s", account.AccountID, handle)

	session, err := s.issueSession(ctx, account, profile)
	if err != nil {
		return nil, err
	}

	s.hub.Notify(profile.UserID, "Profile created successfully")
	return session, nil
}

func (s *authService) LogIn(ctx context.Context, email, password string) (*models.Session, error) {
	if isBlank(email, password) {
		return nil, apperr.Validation("please fill all fields")
	}

	account, err := s.accountRepo.VerifyPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, errors.Annotate(err, "error logging in")
	}

	profile, err := s.loadOrCreateProfile(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, account, profile)
	if err != nil {
		return nil, err
	}

	s.hub.Notify(account.AccountID, "Logged in successfully")
	return session, nil
}

func (s *authService) RefreshTokens(ctx context.Context, refreshToken string) (*models.Session, error) {
	account, err := s.accountRepo.GetAccountByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	profile, err := s.loadOrCreateProfile(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}

	return s.issueSession(ctx, account, profile)
}

// LogOut revokes the refresh token. Profile and posts are left alone.
func (s *authService) LogOut(ctx context.Context) error {
	userID, err := sessionUser(ctx)
	if err != nil {
		return err
	}

	if _, err := s.accountRepo.GetAccountByID(ctx, userID); err != nil {
		if apperr.IsNotFound(err) {
			return apperr.Unauthenticated()
		}
		return errors.Annotate(err, "logging out")
	}

	if err := s.accountRepo.UpdateRefreshToken(ctx, userID, "", time.Unix(0, 0).UTC()); err != nil {
		return errors.Annotate(err, "logging out")
	}

	s.hub.Notify(userID, "Logged out successfully")
	return nil
}

// loadOrCreateProfile mirrors create-or-update: an account without a
// profile document gets an empty one.
func (s *authService) loadOrCreateProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, errors.Annotate(err, "loading profile")
	}

	logger.Warningf("account %s has no profile, creating an empty one", userID)
	profile = &models.UserProfile{UserID: userID, FollowingIDs: []string{}}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, errors.Annotate(err, "creating profile")
	}

	return profile, nil
}

func (s *authService) issueSession(ctx context.Context, account *models.Account, profile *models.UserProfile) (*models.Session, error) {
	accessToken, err := s.generateAccessToken(account)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshTokenExpiry := s.generateRefreshToken()
	err = s.accountRepo.UpdateRefreshToken(ctx, account.AccountID, refreshToken, refreshTokenExpiry)
	if err != nil {
		return nil, errors.Annotate(err, "saving refresh token")
	}

	return &models.Session{
		Profile:      profile,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *authService) generateAccessToken(account *models.Account) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"userId": account.AccountID,
		"email":  account.Email,
		"exp":    now.Add(s.cfg.AccessTokenDuration).Unix(),
		"iat":    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return tokenString, nil
}

func (s *authService) generateRefreshToken() (string, time.Time) {
	return uuid.New().String(), s.clock.Now().Add(s.cfg.RefreshTokenDuration)
}

func (s *authService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecretKey), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return "", apperr.Auth("invalid token: %v", err)
	}

	if !token.Valid {
		return "", apperr.Auth("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.Auth("invalid token claims")
	}

	userID, ok := claims["userId"].(string)
	if !ok || userID == "" {
		return "", apperr.Auth("invalid token claims")
	}

	return userID, nil
}
