package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is matched by every *MalformedResponseError.
	ErrMalformedResponse = errors.New("malformed llm response")
	// ErrInsufficientKeywords is matched by every *InsufficientKeywordsError.
	ErrInsufficientKeywords = errors.New("insufficient keywords")
	// ErrEmptyProblemStatement indicates keyword extraction was requested without text.
	ErrEmptyProblemStatement = errors.New("problem statement is empty")
	// ErrEmptySubmission indicates scoring was requested for a submission without text.
	ErrEmptySubmission = errors.New("submission text is empty")
)

// MalformedResponseError reports LLM output that could not be read as the expected JSON shape.
type MalformedResponseError struct {
	Shape  Shape
	Reason string
	Raw    string
	Cause  error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed llm response (expected %s): %s: %v", e.Shape, e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed llm response (expected %s): %s", e.Shape, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// UserMessage tells the operator the model reply was unusable.
func (e *MalformedResponseError) UserMessage() string {
	return "The AI returned a response that could not be read. Please try again."
}

// InsufficientKeywordsError reports an extraction that produced too few usable keywords.
type InsufficientKeywordsError struct {
	Got int
	Min int
}

func (e *InsufficientKeywordsError) Error() string {
	return fmt.Sprintf("extracted %d keywords, at least %d required", e.Got, e.Min)
}

func (e *InsufficientKeywordsError) Is(target error) bool {
	return target == ErrInsufficientKeywords
}

// UserMessage asks the teacher to improve the problem statement.
func (e *InsufficientKeywordsError) UserMessage() string {
	return fmt.Sprintf("Only %d keywords could be extracted (minimum %d). Please provide a more detailed problem statement.", e.Got, e.Min)
}

type userMessenger interface {
	UserMessage() string
}

// UserMessage returns the human readable explanation carried by err, falling
// back to err.Error() for errors without one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var messenger userMessenger
	if errors.As(err, &messenger) {
		return messenger.UserMessage()
	}
	switch {
	case errors.Is(err, ErrEmptySubmission):
		return "The submission contains no readable text."
	case errors.Is(err, ErrEmptyProblemStatement):
		return "The assignment has no problem statement."
	}
	return err.Error()
}
