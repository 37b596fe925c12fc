package domain

import "encoding/json"

// ActorResult is the envelope every call resolves to.
//
// Error and ErrorType are set if and only if Success is false. IsAsync and
// TaskID are part of the envelope shape; calls are always executed
// synchronously so they stay false and empty.
type ActorResult struct {
	Success   bool      `json:"success"`
	Result    any       `json:"result"`
	Error     string    `json:"error,omitempty"`
	ErrorType ErrorKind `json:"error_type,omitempty"`
	IsAsync   bool      `json:"is_async"`
	TaskID    string    `json:"task_id,omitempty"`
}

// Success wraps a successful return value.
func Success(v any) ActorResult {
	return ActorResult{Success: true, Result: v}
}

// Failure converts an error into a failure envelope.
func Failure(err error) ActorResult {
	if err == nil {
		err = Internalf("unknown error")
	}
	kind := KindOf(err)
	msg := MessageOf(err)
	if msg == "" {
		msg = string(kind)
	}
	return ActorResult{
		Success:   false,
		Error:     msg,
		ErrorType: kind,
	}
}

// Err returns the failure as an *ActorError, or nil on success.
func (r ActorResult) Err() error {
	if r.Success {
		return nil
	}
	return NewActorError(ParseErrorKind(string(r.ErrorType)), r.Error)
}

// MarshalFailure encodes a failure envelope as JSON.
// It never fails: the envelope only carries strings and booleans.
func MarshalFailure(err error) []byte {
	b, _ := json.Marshal(Failure(err))
	return b
}

// ParseFailure recognizes a JSON failure envelope. It returns false for any
// payload that is not an object with "success": false and an "error_type".
func ParseFailure(b []byte) (ActorResult, bool) {
	if len(b) < 2 || b[0] != '{' {
		return ActorResult{}, false
	}
	var probe struct {
		Success   *bool  `json:"success"`
		Error     string `json:"error"`
		ErrorType string `json:"error_type"`
		IsAsync   bool   `json:"is_async"`
		TaskID    string `json:"task_id"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return ActorResult{}, false
	}
	if probe.Success == nil || *probe.Success || probe.ErrorType == "" {
		return ActorResult{}, false
	}
	return ActorResult{
		Success:   false,
		Error:     probe.Error,
		ErrorType: ParseErrorKind(probe.ErrorType),
		IsAsync:   probe.IsAsync,
		TaskID:    probe.TaskID,
	}, true
}
