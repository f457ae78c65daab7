package security

import "testing"

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
		reason   string
	}{
		{"Aa1!aaaa", true, ""},
		{"short1!", false, "Password must be at least 8 characters long"},
		{"alllower1!", false, "Password must contain at least one uppercase letter"},
		{"ALLUPPER1!", false, "Password must contain at least one lowercase letter"},
		{"NoDigits!!", false, "Password must contain at least one digit"},
		{"NoSpecial11", false, "Password must contain at least one special character"},
	}

	for _, tc := range cases {
		ok, reason := ValidatePasswordStrength(tc.password)
		if ok != tc.ok {
			t.Fatalf("ValidatePasswordStrength(%q) ok = %v, want %v", tc.password, ok, tc.ok)
		}
		if !tc.ok && reason != tc.reason {
			t.Fatalf("ValidatePasswordStrength(%q) reason = %q, want %q", tc.password, reason, tc.reason)
		}
	}
}

func TestSecureTokenLengthAndUniqueness(t *testing.T) {
	a, err := SecureToken(32)
	if err != nil {
		t.Fatalf("SecureToken error: %v", err)
	}
	b, err := SecureToken(32)
	if err != nil {
		t.Fatalf("SecureToken error: %v", err)
	}

	if a == b {
		t.Fatal("two 32-byte tokens must not collide")
	}
	if len(a) < 32 {
		t.Fatalf("encoded token too short: %d", len(a))
	}

	if _, err := SecureToken(0); err == nil {
		t.Fatal("expected error for non-positive length")
	}
}

func TestSanitizeInput(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  alice  ", "alice"},
		{"a\x00b\x1fc", "abc"},
		{"first\t\tlast", "first last"},
		{"one  two\nthree", "one two three"},
	}

	for _, tc := range cases {
		if got := SanitizeInput(tc.in); got != tc.want {
			t.Fatalf("SanitizeInput(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
