package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"instafeed/internal/apperr"
	"instafeed/internal/models"
)

var accountColumns = []string{
	"account_id", "email", "password_hash",
	"refresh_token", "refresh_token_expiry_time", "created_at",
}

func newAccountMock(t *testing.T) (AccountRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewAccountRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestAccountRepository_CreateAccount(t *testing.T) {
	repo, mock := newAccountMock(t)
	ctx := context.Background()

	email := "alice@example.com"
	password := "password123"

	insert := `
		INSERT INTO accounts (account_id, email, password_hash, refresh_token, refresh_token_expiry_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	t.Run("creates account with hashed password", func(t *testing.T) {
		account := &models.Account{Email: email, RefreshToken: "refresh_token"}

		mock.ExpectExec(insert).
			WithArgs(
				sqlmock.AnyArg(), // account_id is generated by the repository
				email,
				sqlmock.AnyArg(), // password_hash
				"refresh_token",
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.CreateAccount(ctx, account, password)

		require.NoError(t, err)
		assert.NotEmpty(t, account.AccountID)
		assert.NotEqual(t, password, account.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		account := &models.Account{Email: email}

		mock.ExpectExec(insert).
			WithArgs(sqlmock.AnyArg(), email, sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "accounts_email_key"`))

		err := repo.CreateAccount(ctx, account, password)

		require.Error(t, err)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("backend failure is a gateway error", func(t *testing.T) {
		account := &models.Account{Email: email}

		mock.ExpectExec(insert).
			WithArgs(sqlmock.AnyArg(), email, sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnError(errors.New("connection reset by peer"))

		err := repo.CreateAccount(ctx, account, password)

		require.Error(t, err)
		assert.True(t, apperr.IsGateway(err))
		assert.Contains(t, err.Error(), "connection reset by peer")
	})
}

func TestAccountRepository_GetAccountByID(t *testing.T) {
	repo, mock := newAccountMock(t)
	ctx := context.Background()
	accountID := uuid.New().String()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(accountColumns).
			AddRow(accountID, "alice@example.com", "hash", "token", time.Now().Add(time.Hour), time.Now())

		mock.ExpectQuery(`SELECT * FROM accounts WHERE account_id = $1`).
			WithArgs(accountID).
			WillReturnRows(rows)

		account, err := repo.GetAccountByID(ctx, accountID)

		require.NoError(t, err)
		assert.Equal(t, accountID, account.AccountID)
		assert.Equal(t, "alice@example.com", account.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT * FROM accounts WHERE account_id = $1`).
			WithArgs(accountID).
			WillReturnError(sql.ErrNoRows)

		account, err := repo.GetAccountByID(ctx, accountID)

		assert.Nil(t, account)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT * FROM accounts WHERE account_id = $1`).
			WithArgs(accountID).
			WillReturnError(errors.New("connection failed"))

		account, err := repo.GetAccountByID(ctx, accountID)

		assert.Nil(t, account)
		assert.True(t, apperr.IsGateway(err))
	})
}

func TestAccountRepository_VerifyPassword(t *testing.T) {
	repo, mock := newAccountMock(t)
	ctx := context.Background()

	email := "alice@example.com"
	password := "correct_password"

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	expectAccount := func() {
		rows := sqlmock.NewRows(accountColumns).
			AddRow(uuid.New().String(), email, string(hashedPassword), "", time.Time{}, time.Now())
		mock.ExpectQuery(`SELECT * FROM accounts WHERE email = $1`).
			WithArgs(email).
			WillReturnRows(rows)
	}

	t.Run("correct password", func(t *testing.T) {
		expectAccount()

		account, err := repo.VerifyPassword(ctx, email, password)

		require.NoError(t, err)
		assert.Equal(t, email, account.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		expectAccount()

		account, err := repo.VerifyPassword(ctx, email, "wrong_password")

		assert.Nil(t, account)
		assert.True(t, apperr.IsAuth(err))
	})

	t.Run("unknown email looks like a wrong password", func(t *testing.T) {
		mock.ExpectQuery(`SELECT * FROM accounts WHERE email = $1`).
			WithArgs(email).
			WillReturnError(sql.ErrNoRows)

		account, err := repo.VerifyPassword(ctx, email, password)

		assert.Nil(t, account)
		assert.True(t, apperr.IsAuth(err))
		assert.Equal(t, "invalid email or password", err.Error())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdateRefreshToken(t *testing.T) {
	repo, mock := newAccountMock(t)
	ctx := context.Background()

	accountID := uuid.New().String()
	refreshToken := "new_refresh_token"
	expiryTime := time.Now().Add(168 * time.Hour)

	update := `UPDATE accounts SET refresh_token = $1, refresh_token_expiry_time = $2 WHERE account_id = $3`

	t.Run("updated", func(t *testing.T) {
		mock.ExpectExec(update).
			WithArgs(refreshToken, expiryTime, accountID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateRefreshToken(ctx, accountID, refreshToken, expiryTime))
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectExec(update).
			WithArgs(refreshToken, expiryTime, accountID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateRefreshToken(ctx, accountID, refreshToken, expiryTime)

		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("update failed", func(t *testing.T) {
		mock.ExpectExec(update).
			WithArgs(refreshToken, expiryTime, accountID).
			WillReturnError(errors.New("update failed"))

		err := repo.UpdateRefreshToken(ctx, accountID, refreshToken, expiryTime)

		assert.True(t, apperr.IsGateway(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetAccountByRefreshToken(t *testing.T) {
	repo, mock := newAccountMock(t)
	ctx := context.Background()

	query := `SELECT * FROM accounts WHERE refresh_token = $1 AND refresh_token_expiry_time > CURRENT_TIMESTAMP`

	t.Run("valid token", func(t *testing.T) {
		rows := sqlmock.NewRows(accountColumns).
			AddRow(uuid.New().String(), "alice@example.com", "hash", "valid", time.Now().Add(time.Hour), time.Now())

		mock.ExpectQuery(query).WithArgs("valid").WillReturnRows(rows)

		account, err := repo.GetAccountByRefreshToken(ctx, "valid")

		require.NoError(t, err)
		assert.Equal(t, "valid", account.RefreshToken)
	})

	t.Run("expired token", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("expired").WillReturnError(sql.ErrNoRows)

		account, err := repo.GetAccountByRefreshToken(ctx, "expired")

		assert.Nil(t, account)
		assert.True(t, apperr.IsAuth(err))
	})

	t.Run("empty token never reaches the database", func(t *testing.T) {
		account, err := repo.GetAccountByRefreshToken(ctx, "")

		assert.Nil(t, account)
		assert.True(t, apperr.IsAuth(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
