// Package forms holds the submitted forms and their client-side checks.
// Validate returns the first problem as a user-facing message, or "".
package forms

import (
	"strings"
	"unicode"

	"dermassist/client/internal/models"
)

const (
	MsgRegisterFailed = "Registration failed. Please try again."
	MsgLoginFailed    = "Login failed. Please check your credentials."
	MsgForgotFailed   = "Something went wrong. Please try again."
	MsgResetFailed    = "Reset failed. The link may have expired."
)

type Register struct {
	FullName        string `form:"full_name"`
	Username        string `form:"username"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
	PhoneNumber     string `form:"phone_number"`
	Gender          string `form:"gender"`
	DateOfBirth     string `form:"date_of_birth"`
}

func (f Register) Validate() string {
	switch {
	case strings.TrimSpace(f.FullName) == "":
		return "Full name is required."
	case strings.TrimSpace(f.Username) == "":
		return "Username is required."
	case len([]rune(f.Username)) < 3:
		return "Username must be at least 3 characters."
	case !strings.Contains(f.Email, "@"):
		return "Please enter a valid email address."
	case len([]rune(f.Password)) < 8:
		return "Password must be at least 8 characters."
	case f.Password != f.ConfirmPassword:
		return "Passwords do not match."
	}
	return ""
}

// Input converts the form to the registration payload. Empty optional
// fields are sent as null.
func (f Register) Input() models.RegisterInput {
	return models.RegisterInput{
		FullName:    f.FullName,
		Username:    f.Username,
		Email:       f.Email,
		Password:    f.Password,
		PhoneNumber: optional(f.PhoneNumber),
		Gender:      optional(f.Gender),
		DateOfBirth: optional(f.DateOfBirth),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type Login struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (f Login) Validate() string {
	if f.Username == "" || f.Password == "" {
		return "Please fill in all fields."
	}
	return ""
}

type ForgotPassword struct {
	Email string `form:"email"`
}

func (f ForgotPassword) Validate() string {
	if f.Email == "" {
		return "Please enter your email address"
	}
	return ""
}

type ResetPassword struct {
	Token           string `form:"token"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

func (f ResetPassword) Validate() string {
	switch {
	case f.Token == "":
		return "Invalid reset link. Please request a new one."
	case len([]rune(f.Password)) < 8:
		return "Password must be at least 8 characters."
	case f.Password != f.ConfirmPassword:
		return "Passwords do not match."
	}
	return ""
}

type Check struct {
	Label string
	Pass  bool
}

// Strength is the password meter shown under password fields.
type Strength struct {
	Checks []Check
	Score  int
}

func PasswordStrength(password string) Strength {
	var hasDigit, hasUpper bool
	for _, r := range password {
		hasDigit = hasDigit || unicode.IsDigit(r)
		hasUpper = hasUpper || (r >= 'A' && r <= 'Z')
	}

	s := Strength{Checks: []Check{
		{Label: "At least 8 characters", Pass: len([]rune(password)) >= 8},
		{Label: "Contains a number", Pass: hasDigit},
		{Label: "Contains uppercase", Pass: hasUpper},
	}}
	for _, c := range s.Checks {
		if c.Pass {
			s.Score++
		}
	}
	return s
}
