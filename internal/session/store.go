package session

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"contract-hooks/internal/classify"
	"contract-hooks/internal/types"
)

var (
	// ErrNotJSON is returned when a response body is not a JSON object
	ErrNotJSON = errors.New("session: response body is not a JSON object")
	// ErrNothingCaptured is returned when a response carried no state worth keeping
	ErrNothingCaptured = errors.New("session: nothing captured")
)

// idFields are scanned in order on creation responses
var idFields = []string{"id", "_id", "uuid", "identifier"}

var numericSegment = regexp.MustCompile(`^\d+$`)

// CaptureConfig describes where state is found in responses
type CaptureConfig struct {
	LoginEndpoint    string
	RegisterEndpoint string
	SuccessCodes     []int
	// TokenPatterns are tried in order; dotted entries descend into nested objects.
	TokenPatterns []string
	// TokenField is the only pattern tried when AutoDetectTokens is false.
	TokenField       string
	AutoDetectTokens bool
}

// Capture reports what a single response contributed to the session
type Capture struct {
	Token        bool
	Credentials  bool
	ResourceType string
	ResourceID   string
}

// Store holds the state threaded between transactions of one run.
// It is not safe for concurrent use; the runner drives it sequentially.
type Store struct {
	config      CaptureConfig
	fields      *classify.FieldClassifier
	success     map[int]struct{}
	authToken   string
	resourceIDs map[string]string
	credentials *types.Credentials
}

// NewStore creates an empty session
func NewStore(config CaptureConfig, fields *classify.FieldClassifier) *Store {
	success := make(map[int]struct{}, len(config.SuccessCodes))
	for _, code := range config.SuccessCodes {
		success[code] = struct{}{}
	}
	return &Store{
		config:      config,
		fields:      fields,
		success:     success,
		resourceIDs: make(map[string]string),
	}
}

// AuthToken returns the last captured token
func (s *Store) AuthToken() (string, bool) {
	return s.authToken, s.authToken != ""
}

// SetAuthToken replaces the captured token
func (s *Store) SetAuthToken(token string) {
	s.authToken = token
}

// ResourceID returns the most recently captured id for a resource type such as "orders"
func (s *Store) ResourceID(resourceType string) (string, bool) {
	id, ok := s.resourceIDs[resourceType]
	return id, ok
}

// ResourceIDOr returns the captured id for resourceType or fallback
func (s *Store) ResourceIDOr(resourceType, fallback string) string {
	if id, ok := s.ResourceID(resourceType); ok {
		return id
	}
	return fallback
}

// Credentials returns the account captured from the last registration
func (s *Store) Credentials() (types.Credentials, bool) {
	if s.credentials == nil {
		return types.Credentials{}, false
	}
	return *s.credentials, true
}

// Capture extracts tokens, credentials and resource ids from a finished transaction.
// Misses are reported through ErrNotJSON or ErrNothingCaptured and leave the state untouched.
func (s *Store) Capture(method string, statusCode int, requestBody, responseBody, uri string) (Capture, error) {
	var result Capture

	var response map[string]interface{}
	if err := json.Unmarshal([]byte(responseBody), &response); err != nil || response == nil {
		return result, ErrNotJSON
	}

	path := strings.SplitN(uri, "?", 2)[0]
	post := strings.EqualFold(method, "POST")

	if post && s.isSuccess(statusCode) && s.isAuthEndpoint(path) {
		if token, ok := s.findToken(response); ok {
			s.authToken = token
			result.Token = true
		}
	}

	if post && statusCode == 201 {
		if s.config.RegisterEndpoint != "" && strings.Contains(path, s.config.RegisterEndpoint) {
			if creds, ok := s.credentialsFrom(requestBody); ok {
				s.credentials = &creds
				result.Credentials = true
			}
		}

		if id, ok := firstID(response); ok {
			if resourceType := ResourceType(path); resourceType != "" {
				s.resourceIDs[resourceType] = id
				result.ResourceType = resourceType
				result.ResourceID = id
			}
		}
	}

	if !result.Token && !result.Credentials && result.ResourceID == "" {
		return result, ErrNothingCaptured
	}
	return result, nil
}

func (s *Store) isSuccess(code int) bool {
	_, ok := s.success[code]
	return ok
}

func (s *Store) isAuthEndpoint(path string) bool {
	for _, endpoint := range []string{s.config.LoginEndpoint, s.config.RegisterEndpoint} {
		if endpoint != "" && strings.Contains(path, endpoint) {
			return true
		}
	}
	return false
}

func (s *Store) findToken(response map[string]interface{}) (string, bool) {
	patterns := s.config.TokenPatterns
	if !s.config.AutoDetectTokens {
		patterns = []string{s.config.TokenField}
	}
	for _, pattern := range patterns {
		if token, ok := Lookup(response, pattern).(string); ok && token != "" {
			return token, true
		}
	}
	return "", false
}

// credentialsFrom reads the echoed registration request
func (s *Store) credentialsFrom(body string) (types.Credentials, bool) {
	var request map[string]interface{}
	if err := json.Unmarshal([]byte(body), &request); err != nil || request == nil {
		return types.Credentials{}, false
	}

	var creds types.Credentials
	for key, value := range request {
		str, ok := value.(string)
		if !ok {
			continue
		}
		switch normalizeKey(key) {
		case "firstname":
			creds.FirstName = str
			continue
		case "lastname":
			creds.LastName = str
			continue
		}
		switch s.fields.Classify(key, "string", "") {
		case types.RoleEmail:
			creds.Email = str
		case types.RolePassword:
			creds.Password = str
		}
	}
	return creds, creds.Email != "" || creds.Password != ""
}

// Lookup resolves a dotted path such as "data.token" by descending through nested
// objects. Missing keys and non-object intermediates yield nil.
func Lookup(obj map[string]interface{}, path string) interface{} {
	if obj == nil || path == "" {
		return nil
	}
	var current interface{} = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		if current, ok = m[key]; !ok {
			return nil
		}
	}
	return current
}

// ResourceType is the last path segment that is neither numeric nor a placeholder,
// e.g. "orders" for /api/orders/42.
func ResourceType(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || numericSegment.MatchString(seg) || strings.HasPrefix(seg, "{") {
			continue
		}
		return seg
	}
	return ""
}

func firstID(response map[string]interface{}) (string, bool) {
	for _, field := range idFields {
		switch v := response[field].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64), true
			}
		}
	}
	return "", false
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key))
}
