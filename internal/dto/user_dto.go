package dto

import (
	"time"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	DocumentType   string    `json:"document_type,omitempty"`
	DocumentNumber string    `json:"document_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUserResponse converts a model into its response.
func NewUserResponse(user models.User) UserResponse {
	response := UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role.String(),
		DocumentType: user.DocumentType,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if user.DocumentNumber != nil {
		response.DocumentNumber = *user.DocumentNumber
	}
	return response
}

// UserListRequest filters the user directory.
type UserListRequest struct {
	Page     int    `query:"page" validate:"gte=0"`
	PageSize int    `query:"page_size" validate:"gte=0,lte=100"`
	Role     string `query:"role" validate:"omitempty,role"`
	Search   string `query:"search" validate:"omitempty,max=255"`
}

// UserListResponse wraps a page of users.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// UserUpdateRequest edits another account. Role changes are subject to
// authorization.
type UserUpdateRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email          *string `json:"email" validate:"omitempty,email,max=255"`
	Role           *string `json:"role" validate:"omitempty,role"`
	DocumentType   *string `json:"document_type" validate:"omitempty,oneof=CC TI CE PPT"`
	DocumentNumber *string `json:"document_number" validate:"omitempty,max=32"`
}
