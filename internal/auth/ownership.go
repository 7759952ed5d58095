package auth

import "errors"

// ErrOwnerMismatch is returned when a request names an account other than the caller's.
var ErrOwnerMismatch = errors.New("customer_id does not match the signed-in user")

// EnsureOwner checks a caller-supplied account id against the session. The
// session id is never substituted for a mismatching one.
func EnsureOwner(sess *Session, customerID string) error {
	if sess == nil || sess.UserID == "" || customerID != sess.UserID {
		return ErrOwnerMismatch
	}
	return nil
}
