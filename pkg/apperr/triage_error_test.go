package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("email"))

	appErr := AsAppError(err)
	assert.Equal(t, CodeNotFound, appErr.Code)
	assert.Equal(t, "email not found", appErr.Message)
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(err))
}

func TestAsAppErrorDefaultsToInternal(t *testing.T) {
	cause := errors.New("socket closed")
	appErr := AsAppError(cause)

	assert.Equal(t, CodeInternalError, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, cause)
}

func TestErrorString(t *testing.T) {
	err := DatabaseError("insert email", errors.New("duplicate key"))
	assert.Equal(t, "[DATABASE_ERROR] database error: insert email: duplicate key", err.Error())
	assert.Equal(t, "[BAD_REQUEST] bad", BadRequest("bad").Error())
}
