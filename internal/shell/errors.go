package shell

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

const (
	CodeTabNotFound        = "TAB_NOT_FOUND"
	CodeDuplicateTab       = "DUPLICATE_TAB"
	CodeEngineUnavailable  = "ENGINE_UNAVAILABLE"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeSuppressed         = "INTERACTION_SUPPRESSED"
	CodeClosed             = "SHELL_CLOSED"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// codeStoreErr maps tab store sentinels onto the coded taxonomy.
func codeStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tabs.ErrNotFound):
		return newError(CodeTabNotFound, "tab not found", err)
	case errors.Is(err, tabs.ErrDuplicateID):
		return newError(CodeDuplicateTab, "duplicate tab id", err)
	default:
		return err
	}
}
