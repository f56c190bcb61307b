package handler

import (
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/repository"
)

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{JWTSecret: "secret", AccessTTLMin: 15, BcryptCost: 4}
	return NewAuthHandler(cfg, repository.NewUserRepo(db)), mock
}

func TestRegisterCreatesOperator(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, password_hash, role) VALUES (?,?,?)")).
		WillReturnResult(sqlmock.NewResult(3, 1))

	c, rec := jsonContext(t, `{"email":"Observer@School.Edu","password":"longenough","role":"observer"}`)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["id"])
	assert.Equal(t, "observer@school.edu", body["email"])
	assert.Equal(t, "OBSERVER", body["role"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("Error 1062: Duplicate entry 'a@b.c' for key 'users.email'"))

	c, rec := jsonContext(t, `{"email":"a@b.c","password":"longenough","role":"ADMIN"}`)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h, _ := newAuthHandler(t)

	c, rec := jsonContext(t, `{"email":"a@b.c","password":"short","role":"ADMIN"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = jsonContext(t, `{"email":"a@b.c","password":"longenough","role":"VOTER"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
