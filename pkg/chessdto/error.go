// Package chessdto holds payloads shared with systems outside this module.
package chessdto

// DomainError is a classified failure reported by an outside endpoint.
// Retryable tells the caller whether the same request may succeed later.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	default:
		return "chessdto: remote error"
	}
}
