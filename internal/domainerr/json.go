package domainerr

import "encoding/json"

// toolBoundaryError is the wire shape spec.md section 7 mandates: a single
// JSON object with code, message, context.
type toolBoundaryError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// MarshalJSON serializes the error at the tool boundary as
// {"code", "message", "context"}, per spec.md section 7.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolBoundaryError{
		Code:    e.Code,
		Message: e.Message,
		Context: e.Details,
	})
}

// ToJSON is a convenience wrapper returning the serialized form as a string.
func ToJSON(err error) (string, error) {
	de, ok := err.(*Error)
	if !ok {
		de = Wrap(CodeDatabaseOperationErr, err)
	}
	data, marshalErr := json.Marshal(de)
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(data), nil
}
