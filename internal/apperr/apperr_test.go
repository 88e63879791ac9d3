package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCodedError(t *testing.T) {
	p := Resolve(Forbidden("Only the host can change this run."))
	assert.Equal(t, http.StatusForbidden, p.Status)
	assert.Equal(t, CodeForbidden, p.Code)
	assert.Equal(t, "Only the host can change this run.", p.Message)
	assert.Nil(t, p.Details)
}

func TestResolveValidationCarriesFieldErrors(t *testing.T) {
	p := Resolve(Validation("Invalid id.", map[string][]string{"id": {"Must be a positive integer."}}))
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, CodeValidation, p.Code)
	assert.Equal(t, map[string]any{"fieldErrors": map[string][]string{"id": {"Must be a positive integer."}}}, p.Details)
}

func TestResolveHidesInternalErrors(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp: connection refused"),
		Internal(errors.New("deadlock")),
	} {
		p := Resolve(err)
		assert.Equal(t, http.StatusInternalServerError, p.Status)
		assert.Equal(t, CodeInternal, p.Code)
		assert.Equal(t, "Unexpected server error.", p.Message)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(CodeEmailTaken))
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(CodeRateLimited))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("SOMETHING_ELSE"))
	assert.True(t, Is(NotFound("x"), CodeNotFound))
}
