package sharing

import "fmt"

// Kind classifies an engine error into the stable taxonomy.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindPermission Kind = "permission"
	KindConflict   Kind = "conflict"
	KindStore      Kind = "store"
)

// Deterministic reason codes carried by engine errors. The HTTP layer
// forwards them verbatim so clients can render precise messages.
const (
	ReasonInvalidKey       = "invalid_key"
	ReasonInvalidRole      = "invalid_role"
	ReasonMissingField     = "missing_field"
	ReasonNotFound         = "not_found"
	ReasonKeyNotFound      = "key_not_found"
	ReasonUserNotFound     = "user_not_found"
	ReasonMemberNotFound   = "member_not_found"
	ReasonForbidden        = "forbidden"
	ReasonNotOwner         = "not_owner"
	ReasonCreatorImmutable = "creator_immutable"
	ReasonAlreadyMember    = "already_member"
	ReasonAlreadyOwner     = "already_owner"
	ReasonKeyExhausted     = "key_exhausted"
	ReasonStoreFailure     = "store_failure"
)

// Error is an engine error with a taxonomy kind and a stable reason code.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the taxonomy kind of err, or KindStore for unclassified
// errors (transaction/connection failures surface as generic store errors).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindStore
}

// ReasonOf returns the reason code of err, or store_failure for
// unclassified errors.
func ReasonOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Reason
	}
	return ReasonStoreFailure
}

func validationErr(reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

func notFoundErr(reason, message string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: message}
}

func permissionErr(reason, message string) *Error {
	return &Error{Kind: KindPermission, Reason: reason, Message: message}
}

func conflictErr(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

func storeErr(message string, err error) *Error {
	return &Error{Kind: KindStore, Reason: ReasonStoreFailure, Message: message, Err: err}
}
