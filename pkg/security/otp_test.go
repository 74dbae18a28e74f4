package security_test

import (
	"testing"

	"github.com/clinicore-health/clinicore-backend/pkg/security"
)

func TestGenerateOTPShape(t *testing.T) {
	code, err := security.GenerateOTP()
	if err != nil {
		t.Fatalf("GenerateOTP returned error: %v", err)
	}
	if len(code) != security.OTPDigits {
		t.Fatalf("expected %d digits, got %q", security.OTPDigits, code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit %q in code %q", r, code)
		}
	}
}

func TestVerifyOTPBoundToChallenge(t *testing.T) {
	digest := security.HashOTP("challenge-a", "123456")

	if !security.VerifyOTP("challenge-a", "123456", digest) {
		t.Fatal("matching challenge and code should verify")
	}
	if security.VerifyOTP("challenge-a", "654321", digest) {
		t.Fatal("wrong code must not verify")
	}
	if security.VerifyOTP("challenge-b", "123456", digest) {
		t.Fatal("digest must be bound to its challenge id")
	}
}
