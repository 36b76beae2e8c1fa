// Package user contains the user read model shared across the frontend
// service.
package user

// User is the account record returned by the auth endpoints and persisted
// alongside the session tokens.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	IsRedazione bool   `json:"is_redazione"`
}

// Label returns the name to show for the user, preferring the editorial
// display name when present.
func (u User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}
