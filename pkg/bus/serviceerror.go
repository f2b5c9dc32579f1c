package bus

import "encoding/json"

// ServiceError is a Handler's typed error return, per §4.1's error
// signalling: handleOne sends its Error() string as the reply body
// instead of silently discarding the failure, so a caller waiting on a
// reply subject always sees why a request failed rather than timing
// out with no explanation.
type ServiceError struct {
	Service  string `json:"service"`
	Endpoint string `json:"endpoint"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// NewServiceError builds a ServiceError identifying which service and
// endpoint produced message.
func NewServiceError(service, endpoint, message string) *ServiceError {
	return &ServiceError{Service: service, Endpoint: endpoint, Message: message}
}

// WrapServiceError is NewServiceError for a handler that already has an
// underlying cause; Error() still folds cause's message in, and Unwrap
// keeps it reachable for errors.Is/errors.As.
func WrapServiceError(service, endpoint string, err error) *ServiceError {
	return &ServiceError{Service: service, Endpoint: endpoint, Message: err.Error(), Err: err}
}

// Error renders the ServiceError as the JSON payload handleOne sends as
// the reply body, so a caller parsing the reply gets the same
// service/endpoint/message structure a Go caller gets from the struct.
func (e *ServiceError) Error() string {
	raw, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return string(raw)
}

func (e *ServiceError) Unwrap() error { return e.Err }
