package models

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// UserProfile is the backend's /user/me record. The client only caches it
// for the lifetime of a session.
type UserProfile struct {
	ID          int64    `json:"id,omitempty"`
	FullName    string   `json:"full_name"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	PhoneNumber *string  `json:"phone_number,omitempty"`
	Gender      *string  `json:"gender,omitempty"`
	DateOfBirth *string  `json:"date_of_birth,omitempty"`
	Role        UserRole `json:"role"`
}

// RegisterInput carries the registration form; optional fields are sent as
// null when empty.
type RegisterInput struct {
	FullName    string  `json:"full_name"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	PhoneNumber *string `json:"phone_number"`
	Gender      *string `json:"gender"`
	DateOfBirth *string `json:"date_of_birth"`
}
