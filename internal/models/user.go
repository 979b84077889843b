package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserResponse is the outbound projection of a User. Every handler that
// returns a user goes through NewUserResponse so secrets never leave the
// service.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserResponse strips secret fields from u.
func NewUserResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUserResponses projects a list of users.
func NewUserResponses(users []User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

// UserUpdate carries the fields of a partial update. Nil fields are left
// untouched by the repository.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
}

// LoginResult is returned by a successful authentication.
type LoginResult struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	LoginTime string       `json:"loginTime"`
}
