package profile

import "fmt"

func fmtErrUserExists(userID string) error {
	return fmt.Errorf("profile: user %q already exists", userID)
}

func fmtErrUserNotFound(userID string) error {
	return fmt.Errorf("profile: user %q not found", userID)
}
