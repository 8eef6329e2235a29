package validation

import "testing"

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+998901234567", true},
		{"+998991112233", true},
		{"998901234567", false},  // missing plus
		{"+99890123456", false},  // too short
		{"+9989012345678", false},
		{"+7 900 123 45 67", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidatePhone(tt.phone); got != tt.want {
			t.Errorf("ValidatePhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}

func TestUzphoneTag(t *testing.T) {
	v := NewValidator()

	type payload struct {
		Phone string `validate:"required,uzphone"`
	}

	if err := v.ValidateStruct(payload{Phone: "+998901234567"}); err != nil {
		t.Errorf("expected valid phone to pass, got %v", err)
	}
	if err := v.ValidateStruct(payload{Phone: "12345"}); err == nil {
		t.Error("expected invalid phone to fail")
	}
}
