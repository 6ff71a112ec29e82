package models

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned by a successful login or initial setup.
type LoginResult struct {
	User  *User
	Token *Token
}

// ChangePasswordRequest payload for updating password. OldPassword is only consulted when a
// user changes their own password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

// SetupStatus reports whether the initial administrator still has to be created.
type SetupStatus struct {
	RequiresSetup bool `json:"requiresSetup"`
}
