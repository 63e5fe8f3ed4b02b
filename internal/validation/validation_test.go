package validation

import "testing"

func TestIsValidID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{
			name:  "product id",
			id:    "prod_headphones_01",
			valid: true,
		},
		{
			name:  "uuid",
			id:    "0190b8a2-7c1e-7d3a-9f0e-2b5c8d1e4f6a",
			valid: true,
		},
		{
			name:  "empty string",
			id:    "",
			valid: false,
		},
		{
			name:  "contains separator",
			id:    "prod:1",
			valid: false,
		},
		{
			name:  "contains slash",
			id:    "a/b",
			valid: false,
		},
		{
			name:  "non ascii",
			id:    "товар",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidID(tt.id)
			if got != tt.valid {
				t.Fatalf("IsValidID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

type sample struct {
	Quantity int    `json:"quantity" validate:"gte=1"`
	Email    string `json:"email" validate:"required,email"`
}

func TestStruct(t *testing.T) {
	if err := Struct(sample{Quantity: 1, Email: "a@b.io"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Struct(sample{Quantity: 0, Email: "a@b.io"})
	if err == nil || err.Error() != "quantity must be at least 1" {
		t.Fatalf("err = %v, want quantity message", err)
	}

	err = Struct(sample{Quantity: 2, Email: "nope"})
	if err == nil || err.Error() != "email must be a valid email" {
		t.Fatalf("err = %v, want email message", err)
	}
}
