package domain

import "errors"

var (
	// ErrNotFound is returned when a test, snapshot, result or analysis does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the remote service rejects the token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidConfig indicates the test configuration failed validation.
	ErrInvalidConfig = errors.New("invalid test configuration")
	// ErrNoSession is returned when an action needs a loaded test.
	ErrNoSession = errors.New("no test session loaded")
	// ErrSessionNotActive is returned when an action requires an in-progress session.
	ErrSessionNotActive = errors.New("test session is not in progress")
	// ErrSessionLocked is returned after the timer ran out; answers are frozen.
	ErrSessionLocked = errors.New("test session is locked")
	// ErrQuestionNotFound indicates a question ID outside the loaded sequence.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates an option key the question does not offer.
	ErrOptionNotFound = errors.New("option not found")
	// ErrSubjectNotFound indicates a subject with no questions in the session.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubmissionInFlight is returned when an action would race a pending submission.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrAlreadySubmitted is returned when the session was already completed.
	ErrAlreadySubmitted = errors.New("test already submitted")
	// ErrStaleCompletion is returned when a network result arrives for a session
	// that has since been reset or replaced.
	ErrStaleCompletion = errors.New("session changed while request was in flight")
)
