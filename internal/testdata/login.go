package testdata

import (
	"errors"

	"contract-hooks/internal/types"
)

// ErrNoLoginCredentials is returned for outcomes that have no fixed login body
var ErrNoLoginCredentials = errors.New("testdata: no login credentials for outcome")

// Fixed login pairs. The fallback is used when no registration was captured yet.
var (
	FallbackLogin = types.Credentials{Email: "fallback@example.com", Password: "fallbackpassword"}
	InvalidLogin  = types.Credentials{Email: "nonexistent@example.com", Password: "wrongpassword"}
)

// LoginCredentials returns the two-field login body for outcome. A successful login
// mirrors the last registration; an unauthorized one uses an unknown account.
func LoginCredentials(outcome types.OutcomeClass, creds CredentialSource) (map[string]interface{}, error) {
	switch outcome {
	case types.OutcomeSuccess:
		pair := FallbackLogin
		if creds != nil {
			if captured, ok := creds.Credentials(); ok {
				pair = captured
			}
		}
		return loginBody(pair), nil
	case types.OutcomeUnauthorized:
		return loginBody(InvalidLogin), nil
	default:
		return nil, ErrNoLoginCredentials
	}
}

func loginBody(c types.Credentials) map[string]interface{} {
	return map[string]interface{}{
		"email":    c.Email,
		"password": c.Password,
	}
}
