package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contract-hooks/internal/types"
)

func defaultPatterns() Patterns {
	return Patterns{
		Email:      []string{"email", "emailAddress", "userEmail", "mail"},
		Password:   []string{"password", "passwd", "pwd", "pass"},
		Identifier: []string{"id", "_id", "uuid", "identifier", "pk", "objectId"},
		Token:      []string{"token", "access_token", "accessToken", "authToken", "jwt"},
	}
}

func TestFieldClassifier(t *testing.T) {
	c := NewFieldClassifier(defaultPatterns(), true)

	tests := []struct {
		name   string
		field  string
		typ    string
		format string
		want   types.FieldRole
	}{
		{"email by name", "email", "string", "", types.RoleEmail},
		{"email by camel case pattern", "UserEmail", "string", "", types.RoleEmail},
		{"email by format", "contact", "string", "email", types.RoleEmail},
		{"email beats token", "emailToken", "string", "", types.RoleEmail},
		{"password", "new_password", "string", "", types.RolePassword},
		{"password beats token", "passToken", "string", "", types.RolePassword},
		{"token beats identifier", "idToken", "string", "", types.RoleToken},
		{"identifier", "user_id", "integer", "", types.RoleIdentifier},
		{"object id pattern", "objectId", "string", "", types.RoleIdentifier},
		{"unknown", "quantity", "integer", "", types.RoleUnknown},
		{"empty name", "", "string", "", types.RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.field, tt.typ, tt.format))
		})
	}
}

func TestFieldClassifierWithoutIdentifiers(t *testing.T) {
	c := NewFieldClassifier(defaultPatterns(), false)
	assert.Equal(t, types.RoleUnknown, c.Classify("user_id", "integer", ""))
	assert.Equal(t, types.RoleEmail, c.Classify("email", "string", ""))
}

func TestOutcomeClassifier(t *testing.T) {
	c := DefaultOutcomeClassifier()

	tests := []struct {
		label string
		want  types.OutcomeClass
		code  int
	}{
		{"Auth > /auth/register > Register > 201 > application/json", types.OutcomeSuccess, 201},
		{"Orders > /api/orders/{id} > Delete order > 404 > application/json", types.OutcomeNotFound, 404},
		{"Auth > /auth/login > Login > 401", types.OutcomeUnauthorized, 401},
		{"Users > Create > 409", types.OutcomeConflict, 409},
		{"Orders > Create > 400", types.OutcomeBadRequest, 400},
		{"Orders > Create > 422", types.OutcomeBadRequest, 422},
		{"Products > List > 500", types.OutcomeServerError, 500},
		{"Products > 123 > then 404", types.OutcomeNotFound, 404},
		{"Products > 12345 > List", types.OutcomeUnspecified, 0},
		{"Health check", types.OutcomeUnspecified, 0},
		{"", types.OutcomeUnspecified, 0},
		{"first 200 then 404", types.OutcomeSuccess, 200},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			class, code := c.Match(tt.label)
			assert.Equal(t, tt.want, class)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.want, c.Classify(tt.label))
		})
	}
}

func TestOutcomeClassifierCustomCodes(t *testing.T) {
	c := NewOutcomeClassifier([]int{200}, []int{404})
	assert.Equal(t, types.OutcomeUnspecified, c.Classify("Create > 201"))
	assert.Equal(t, types.OutcomeNotFound, c.Classify("Get > 404"))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, types.OutcomeSuccess, StatusClass(204))
	assert.Equal(t, types.OutcomeUnauthorized, StatusClass(403))
	assert.Equal(t, types.OutcomeServerError, StatusClass(503))
	assert.Equal(t, types.OutcomeUnspecified, StatusClass(302))
}
