package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestPrincipalRepository_FindByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `schools` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	principal, err := repo.FindByEmail(context.Background(), model.KindSchool, "s@acme.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, principal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_FindByIDUsesKindTable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)
	id := uuid.New()

	mock.ExpectQuery("SELECT \\* FROM `members` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "verified"}).
			AddRow(id.String(), "Jane", "jane@x.com", true))

	principal, err := repo.FindByID(context.Background(), model.KindMember, id)
	require.NoError(t, err)
	member, ok := principal.(*model.Member)
	require.True(t, ok)
	assert.Equal(t, id, member.ID)
	assert.Equal(t, "jane@x.com", member.Email)
	assert.True(t, member.Verified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_CreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectExec("INSERT INTO `schools`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 's@acme.com' for key 'idx_schools_email'"})

	school := &model.School{Name: "Acme", Phone: "123", Credentials: model.Credentials{Email: "s@acme.com", PasswordHash: "pw1"}}
	err := repo.Create(context.Background(), school)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_ConsumeOTP(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "matching code", affected: 1, want: true},
		{name: "wrong or expired code", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPrincipalRepository(db)

			mock.ExpectExec("UPDATE `schools` SET").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.ConsumeOTP(context.Background(), model.KindSchool, uuid.New(), "482913", time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPrincipalRepository_UpdatePasswordMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectExec("UPDATE `members` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), model.KindMember, uuid.New(), "$2a$10$abc")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
