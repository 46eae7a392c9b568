package classify

import (
	"contract-hooks/internal/types"
)

// OutcomeClassifier derives the intended outcome from a transaction label such as
// "Orders > /api/orders/{id} > Delete order > 404 > application/json".
//
// The label is scanned for runs of exactly three digits; the first run that is one
// of the known status codes decides the class. Labels without one are Unspecified.
type OutcomeClassifier struct {
	known map[int]types.OutcomeClass
}

// NewOutcomeClassifier creates a classifier for the given success and error codes
func NewOutcomeClassifier(success, errorCodes []int) *OutcomeClassifier {
	c := &OutcomeClassifier{known: make(map[int]types.OutcomeClass)}
	for _, codes := range [][]int{success, errorCodes} {
		for _, code := range codes {
			if class := StatusClass(code); class != types.OutcomeUnspecified {
				c.known[code] = class
			}
		}
	}
	return c
}

// DefaultOutcomeClassifier knows the default success and error status codes
func DefaultOutcomeClassifier() *OutcomeClassifier {
	return NewOutcomeClassifier([]int{200, 201, 202, 204}, []int{400, 401, 403, 404, 409, 422, 500})
}

// Classify returns the outcome class of label
func (c *OutcomeClassifier) Classify(label string) types.OutcomeClass {
	class, _ := c.Match(label)
	return class
}

// Match returns the outcome class and the status code it was derived from
func (c *OutcomeClassifier) Match(label string) (types.OutcomeClass, int) {
	for i := 0; i < len(label); {
		if !isDigit(label[i]) {
			i++
			continue
		}
		j := i
		for j < len(label) && isDigit(label[j]) {
			j++
		}
		if j-i == 3 {
			code := int(label[i]-'0')*100 + int(label[i+1]-'0')*10 + int(label[i+2]-'0')
			if class, ok := c.known[code]; ok {
				return class, code
			}
		}
		i = j
	}
	return types.OutcomeUnspecified, 0
}

// StatusClass maps a status code to the outcome it represents
func StatusClass(code int) types.OutcomeClass {
	switch {
	case code >= 200 && code < 300:
		return types.OutcomeSuccess
	case code == 400 || code == 422:
		return types.OutcomeBadRequest
	case code == 401 || code == 403:
		return types.OutcomeUnauthorized
	case code == 404:
		return types.OutcomeNotFound
	case code == 409:
		return types.OutcomeConflict
	case code >= 500 && code < 600:
		return types.OutcomeServerError
	default:
		return types.OutcomeUnspecified
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
