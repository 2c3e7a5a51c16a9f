package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"instafeed/internal/apperr"
	"instafeed/internal/models"
)

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value")
}

func (r *accountRepository) CreateAccount(ctx context.Context, account *models.Account, password string) error {
	// create password hash
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Gateway(err, "hashing password")
	}

	account.AccountID = uuid.New().String()
	account.PasswordHash = string(hashedPassword)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (account_id, email, password_hash, refresh_token, refresh_token_expiry_time, created_at)
		VALUES (:account_id, :email, :password_hash, :refresh_token, :refresh_token_expiry_time, :created_at)
	`

	_, err = r.db.NamedExecContext(ctx, query, account)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("email %s is already registered", account.Email)
		}
		return apperr.Gateway(err, "creating account")
	}

	return nil
}

func (r *accountRepository) GetAccountByID(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account

	query := `SELECT * FROM accounts WHERE account_id = $1`

	err := r.db.GetContext(ctx, &account, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("account %s not found", accountID)
		}
		return nil, apperr.Gateway(err, "getting account")
	}

	return &account, nil
}

func (r *accountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account

	query := `SELECT * FROM accounts WHERE email = $1`

	err := r.db.GetContext(ctx, &account, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("account with email %s not found", email)
		}
		return nil, apperr.Gateway(err, "getting account by email")
	}

	return &account, nil
}

func (r *accountRepository) VerifyPassword(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := r.GetAccountByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Auth("invalid email or password")
		}
		return nil, err
	}

	// checking that the password hash is the same
	err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password))
	if err != nil {
		return nil, apperr.Auth("invalid email or password")
	}

	return account, nil
}

func (r *accountRepository) UpdateRefreshToken(ctx context.Context, accountID, refreshToken string, expiryTime time.Time) error {
	query := `
		UPDATE accounts
		SET refresh_token = $1, refresh_token_expiry_time = $2
		WHERE account_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, refreshToken, expiryTime, accountID)
	if err != nil {
		return apperr.Gateway(err, "updating refresh token")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.Gateway(err, "checking updated rows")
	}

	if rowsAffected == 0 {
		return apperr.NotFound("account %s not found", accountID)
	}

	return nil
}

func (r *accountRepository) GetAccountByRefreshToken(ctx context.Context, refreshToken string) (*models.Account, error) {
	if refreshToken == "" {
		return nil, apperr.Auth("invalid or expired refresh token")
	}

	var account models.Account

	query := `
		SELECT * FROM accounts
		WHERE refresh_token = $1
		AND refresh_token_expiry_time > CURRENT_TIMESTAMP
	`

	err := r.db.GetContext(ctx, &account, query, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Auth("invalid or expired refresh token")
		}
		return nil, apperr.Gateway(err, "getting account by refresh token")
	}

	return &account, nil
}
