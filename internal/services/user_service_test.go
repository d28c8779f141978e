package services

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapUserInsertError(t *testing.T) {
	t.Run("username unique violation", func(t *testing.T) {
		err := mapUserInsertError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("email unique violation", func(t *testing.T) {
		err := mapUserInsertError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_email_key"})
		assert.ErrorIs(t, err, ErrIdentifierInUse)
	})

	t.Run("phone unique violation", func(t *testing.T) {
		err := mapUserInsertError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_phone_key"})
		assert.ErrorIs(t, err, ErrIdentifierInUse)
	})

	t.Run("other pq errors pass through", func(t *testing.T) {
		orig := &pq.Error{Code: "23503", Constraint: "memberships_user_id_fkey"}
		assert.Equal(t, error(orig), mapUserInsertError(orig))
	})

	t.Run("non-pq errors pass through", func(t *testing.T) {
		orig := errors.New("connection reset")
		assert.Equal(t, orig, mapUserInsertError(orig))
	})
}
