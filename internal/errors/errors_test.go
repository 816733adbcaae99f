package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	e := New(CategoryForge, SeverityFatal, "repository creation failed")
	assert.Equal(t, "forge (fatal): repository creation failed", e.Error())

	wrapped := Wrap(errors.New("status 503"), CategoryForge, SeverityFatal, "repository creation failed")
	assert.Equal(t, "forge (fatal): repository creation failed: status 503", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := Wrap(cause, CategoryNetwork, SeverityWarning, "notify failed")
	require.ErrorIs(t, e, cause)
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(errors.New("x"), CategoryNetwork, SeverityWarning, "m")))
	assert.False(t, IsRetryable(New(CategoryValidation, SeverityWarning, "m")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCategoryHelpers(t *testing.T) {
	e := ValidationError("round out of range")
	assert.True(t, IsCategory(e, CategoryValidation))
	assert.False(t, IsCategory(e, CategoryForge))
	assert.Equal(t, CategoryValidation, GetCategory(e))
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	e := RepoCreateError("app-demo", errors.New("409"))
	require.NotNil(t, e.Context)
	assert.Equal(t, "app-demo", e.Context["repository"])
}

func TestHTTPStatusMapping(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ValidationError("bad"), http.StatusBadRequest},
		{AuthError("bad secret"), http.StatusForbidden},
		{New(CategoryForge, SeverityFatal, "x"), http.StatusBadGateway},
		{New(CategoryGeneration, SeverityWarning, "x"), http.StatusUnprocessableEntity},
		{New(CategoryHistory, SeverityFatal, "x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, a.StatusCodeFor(c.err))
	}
}

func TestFormatErrorResponse(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	e := FileUpsertError("index.html", errors.New("502"))
	resp := a.FormatErrorResponse(e)
	assert.Equal(t, "file upsert failed", resp.Error)
	assert.Equal(t, "forge", resp.Code)
	assert.True(t, resp.Retryable)
	assert.Equal(t, "index.html", resp.Details["path"])
}
