package validator

import "testing"

type registerInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	Password  string `json:"password" validate:"required,min=6"`
}

func TestStruct_Valid(t *testing.T) {
	errs := Struct(registerInput{
		FirstName: "Test",
		Email:     "test1@example.com",
		Phone:     "+380971234567",
		Password:  "Test@123",
	})
	if errs.HasErrors() {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	errs := Struct(registerInput{
		Email:    "not-an-email",
		Phone:    "call me",
		Password: "123",
	})

	want := map[string]string{
		"firstName": "firstName is required",
		"email":     "Invalid email address",
		"phone":     "Invalid phone number",
		"password":  "password must be at least 6 characters",
	}
	if len(errs) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), errs)
	}
	for field, msg := range want {
		if errs[field] != msg {
			t.Errorf("%s: expected %q, got %q", field, msg, errs[field])
		}
	}
}

func TestValidatePhone(t *testing.T) {
	type phoneOnly struct {
		Phone string `json:"phone" validate:"phone"`
	}
	tests := []struct {
		phone string
		ok    bool
	}{
		{"+380971234567", true},
		{"(097) 123-45-67", true},
		{"12345", false},
		{"+38097+1234567", false},
		{"phone", false},
	}
	for _, tt := range tests {
		errs := Struct(phoneOnly{Phone: tt.phone})
		if errs.HasErrors() == tt.ok {
			t.Errorf("phone %q: expected ok=%v, got errors %v", tt.phone, tt.ok, errs)
		}
	}
}
