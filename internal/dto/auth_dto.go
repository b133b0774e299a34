package dto

import "time"

// RegisterRequest creates an account. Admin accounts cannot self-register.
type RegisterRequest struct {
	Name           string `json:"name" validate:"required,max=255"`
	Email          string `json:"email" validate:"required,email,max=255"`
	Password       string `json:"password" validate:"required,min=6,max=72"`
	DocumentType   string `json:"document_type" validate:"omitempty,oneof=CC TI CE PPT"`
	DocumentNumber string `json:"document_number" validate:"omitempty,max=32"`
	Role           string `json:"role" validate:"omitempty,oneof=instructor aprendiz student"`
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdateRequest edits the caller's own account. Changing the password
// requires the current one.
type ProfileUpdateRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email           *string `json:"email" validate:"omitempty,email,max=255"`
	Password        *string `json:"password" validate:"omitempty,min=6,max=72"`
	CurrentPassword string  `json:"current_password" validate:"required_with=Password"`
	DocumentType    *string `json:"document_type" validate:"omitempty,oneof=CC TI CE PPT"`
	DocumentNumber  *string `json:"document_number" validate:"omitempty,max=32"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}
