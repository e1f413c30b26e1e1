package brewbrain

import "fmt"

// AuthError reports a failed login.
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("brewbrain: login failed (%d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("brewbrain: login failed (%d)", e.StatusCode)
}

// FetchError reports a non-200 response to an authenticated request.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("brewbrain: fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
