package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentials struct {
	UserName string `json:"userName" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"notblank"`
}

type untagged struct {
	Name string `validate:"required"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(credentials{UserName: "alice", Password: "pw123"})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(credentials{Email: "not-an-email", Password: "pw"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid email address", valErr.Fields()["email"])
}

func TestValidate_FallsBackToStructFieldName(t *testing.T) {
	err := Validate(untagged{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Name'")
	assert.Contains(t, err.Error(), "is required")
}

func TestValidate_NotBlankRejectsWhitespace(t *testing.T) {
	err := Validate(credentials{UserName: "alice", Password: "   "})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "is required", valErr.Fields()["password"])
}

func TestValidate_RequiredWithout(t *testing.T) {
	err := Validate(credentials{Password: "pw123"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["userName"], "Email")
}

type bounded struct {
	Short string `json:"short" validate:"min=3"`
	Long  string `json:"long" validate:"max=5"`
}

func TestValidate_MinMax(t *testing.T) {
	err := Validate(bounded{Short: "ab", Long: "toolongstring"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields["short"], "at least 3")
	assert.Contains(t, fields["long"], "at most 5")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"userName":"alice","password":"pw123"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var c credentials
	require.NoError(t, DecodeAndValidate(req, &c))
	assert.Equal(t, "alice", c.UserName)
	assert.Equal(t, "pw123", c.Password)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var c credentials
	err := DecodeAndValidate(req, &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userName":"alice"}`))

	var c credentials
	err := DecodeAndValidate(req, &c)
	require.Error(t, err)
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
