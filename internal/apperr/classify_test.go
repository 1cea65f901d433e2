package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode_KnownTypes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusCode(NewNotFound(EntityRepository, "", "")))
	assert.Equal(t, http.StatusConflict, StatusCode(NewConflict(EntityRepository, "", "")))
	assert.Equal(t, http.StatusBadRequest, StatusCode(NewValidation("", "")))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(NewUnauthorized("", "")))
	assert.Equal(t, http.StatusForbidden, StatusCode(NewForbidden("", "")))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(NewUnprocessable("", "")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusCode(NewQuotaExceeded("")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(WrapInternal(errors.New("boom"), "", "")))
}

func TestCode_QuotaExceededIsAlwaysBadRequest(t *testing.T) {
	assert.Equal(t, "BadRequest", Code(NewQuotaExceeded("private quota exceeded for owner alice")))
}

func TestStatusCode_UnknownDefaultsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}

func TestCode_FallsBackToDefaultWhenUnset(t *testing.T) {
	assert.Equal(t, "EntityNotFound", Code(NewNotFound(EntityRepository, "", "missing")))
	assert.Equal(t, "RepoNotFound", Code(NewNotFound(EntityRepository, "RepoNotFound", "missing")))
}

func TestMessage_InternalNeverLeaksWrappedError(t *testing.T) {
	err := WrapInternal(errors.New("pq: connection reset"), "InternalServerError", "could not save commit")
	assert.Equal(t, "could not save commit", Message(err))
	assert.NotContains(t, Message(err), "pq:")
}
