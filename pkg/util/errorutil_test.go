package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewConflict("already resolved", map[string]any{"status": "resolved"})
	converted := ToDomainError(original)
	require.NotNil(t, converted)
	assert.Equal(t, "CONFLICT", converted.Code)
	assert.Equal(t, http.StatusConflict, converted.HTTPStatus)
	assert.Equal(t, "resolved", converted.Details["status"])
}

func TestToDomainErrorWrapped(t *testing.T) {
	wrapped := fmt.Errorf("repo layer: %w", NewForbidden("not the primary"))
	converted := ToDomainError(wrapped)
	require.NotNil(t, converted)
	assert.Equal(t, "FORBIDDEN", converted.Code)
}

func TestToDomainErrorNoRows(t *testing.T) {
	converted := ToDomainError(fmt.Errorf("query case: %w", pgx.ErrNoRows))
	require.NotNil(t, converted)
	assert.Equal(t, "NOT_FOUND", converted.Code)
	assert.Equal(t, http.StatusNotFound, converted.HTTPStatus)
}

func TestToDomainErrorUnknown(t *testing.T) {
	converted := ToDomainError(errors.New("disk on fire"))
	require.NotNil(t, converted)
	assert.Equal(t, "INTERNAL_ERROR", converted.Code)
	assert.Equal(t, http.StatusInternalServerError, converted.HTTPStatus)
	assert.Equal(t, "internal server error", converted.Message, "internals never leak to clients")
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("pool exhausted")
	err := NewInternalError(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestToDomainErrorNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}
