package types

// Transaction mirrors the transaction object the contract-test runner hands to hooks.
// Request fields are rewritten before dispatch, Real is read after the response arrives.
type Transaction struct {
	Name     string        `json:"name"`
	ID       string        `json:"id,omitempty"`
	FullPath string        `json:"fullPath,omitempty"`
	Request  Request       `json:"request"`
	Real     *RealResponse `json:"real,omitempty"`
	Skip     bool          `json:"skip"`
}

// Request is the outgoing request of a transaction
type Request struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// RealResponse is the response the system under test actually returned.
// Header values are strings or string arrays (set-cookie), so they are kept untyped.
type RealResponse struct {
	StatusCode int                    `json:"statusCode"`
	Headers    map[string]interface{} `json:"headers,omitempty"`
	Body       string                 `json:"body"`
}

// Credentials holds the account a registration transaction created
type Credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FieldRole is the semantic category of a schema field
type FieldRole int

const (
	RoleUnknown FieldRole = iota
	RoleEmail
	RolePassword
	RoleIdentifier
	RoleToken
)

func (r FieldRole) String() string {
	switch r {
	case RoleEmail:
		return "email"
	case RolePassword:
		return "password"
	case RoleIdentifier:
		return "identifier"
	case RoleToken:
		return "token"
	default:
		return "unknown"
	}
}

// OutcomeClass is the result category a transaction is meant to provoke
type OutcomeClass int

const (
	OutcomeUnspecified OutcomeClass = iota
	OutcomeSuccess
	OutcomeBadRequest
	OutcomeUnauthorized
	OutcomeConflict
	OutcomeNotFound
	OutcomeServerError
)

func (o OutcomeClass) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeConflict:
		return "conflict"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeServerError:
		return "server_error"
	default:
		return "unspecified"
	}
}
