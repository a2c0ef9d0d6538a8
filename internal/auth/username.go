package auth

import "regexp"

const (
	UsernameMinLength = 3
	UsernameMaxLength = 30
)

// Usernames are matched after lowercasing: letters, digits, dot, underscore
// and hyphen, starting with a letter or digit.
var usernameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidateUsername reports whether the (already lowercased) username satisfies
// the shared format rule used by both login and signup.
func ValidateUsername(username string) bool {
	if len(username) < UsernameMinLength || len(username) > UsernameMaxLength {
		return false
	}
	return usernameRegexp.MatchString(username)
}
