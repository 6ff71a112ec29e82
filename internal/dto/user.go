package dto

import (
	"time"

	"github.com/noah-isme/annotatron-api/internal/models"
)

// UserResponse is the external view of a user.
type UserResponse struct {
	ID                  string          `json:"id"`
	Username            string          `json:"username"`
	Email               string          `json:"email"`
	Role                models.UserRole `json:"role"`
	PasswordResetNeeded bool            `json:"passwordResetNeeded"`
	PasswordLastChanged *time.Time      `json:"passwordLastChanged,omitempty"`
	Created             time.Time       `json:"created"`
}

// NewUserResponse renders user with an obfuscated id.
func NewUserResponse(ids IDCodec, user *models.User) UserResponse {
	return UserResponse{
		ID:                  ids.Encode(user.ID),
		Username:            user.Username,
		Email:               user.Email,
		Role:                user.Role,
		PasswordResetNeeded: user.PasswordResetNeeded,
		PasswordLastChanged: user.PasswordLastChanged,
		Created:             user.CreatedAt,
	}
}

// NewUserResponses renders a list of users.
func NewUserResponses(ids IDCodec, users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(ids, &users[i]))
	}
	return out
}

// SessionResponse is returned by login and initial setup.
type SessionResponse struct {
	Token               string       `json:"token"`
	Expires             time.Time    `json:"expires"`
	PasswordResetNeeded bool         `json:"passwordResetNeeded"`
	User                UserResponse `json:"user"`
}

// NewSessionResponse renders a login result.
func NewSessionResponse(ids IDCodec, result *models.LoginResult) SessionResponse {
	return SessionResponse{
		Token:               result.Token.Token,
		Expires:             result.Token.ExpiresAt,
		PasswordResetNeeded: result.User.PasswordResetNeeded,
		User:                NewUserResponse(ids, result.User),
	}
}
