package forms

import "testing"

func TestRegisterValidate(t *testing.T) {
	valid := Register{
		FullName: "Ada Lovelace", Username: "ada", Email: "ada@example.com",
		Password: "Password1", ConfirmPassword: "Password1",
	}

	tests := []struct {
		name   string
		mutate func(*Register)
		want   string
	}{
		{"valid", func(*Register) {}, ""},
		{"no name", func(f *Register) { f.FullName = "  " }, "Full name is required."},
		{"short username", func(f *Register) { f.Username = "ab" }, "Username must be at least 3 characters."},
		{"bad email", func(f *Register) { f.Email = "ada.example.com" }, "Please enter a valid email address."},
		{"short password", func(f *Register) { f.Password, f.ConfirmPassword = "Pass1", "Pass1" }, "Password must be at least 8 characters."},
		{"mismatch", func(f *Register) { f.ConfirmPassword = "Password2" }, "Passwords do not match."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			if got := f.Validate(); got != tt.want {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterInputOptionalFields(t *testing.T) {
	in := Register{FullName: "Ada", Username: "ada", Email: "a@b", Password: "x", Gender: "female"}.Input()
	if in.PhoneNumber != nil || in.DateOfBirth != nil {
		t.Errorf("empty optional fields should be nil: %+v", in)
	}
	if in.Gender == nil || *in.Gender != "female" {
		t.Errorf("gender = %v", in.Gender)
	}
}

func TestResetValidate(t *testing.T) {
	if got := (ResetPassword{Password: "Password1", ConfirmPassword: "Password1"}).Validate(); got != "Invalid reset link. Please request a new one." {
		t.Errorf("missing token: %q", got)
	}
	if got := (ResetPassword{Token: "t", Password: "Password1", ConfirmPassword: "Password1"}).Validate(); got != "" {
		t.Errorf("valid: %q", got)
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := map[string]int{
		"":          0,
		"password":  1,
		"password1": 2,
		"Password1": 3,
		"PASS":      1,
	}
	for pw, want := range tests {
		if got := PasswordStrength(pw).Score; got != want {
			t.Errorf("PasswordStrength(%q) = %d, want %d", pw, got, want)
		}
	}
}
