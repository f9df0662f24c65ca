package auth

import "testing"

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	if hash == "correct-horse-battery-staple" {
		t.Fatal("hash must not equal the plaintext secret")
	}

	if err := VerifySecret(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("expected correct secret to verify, got %v", err)
	}
	if err := VerifySecret(hash, "wrong-secret"); err == nil {
		t.Error("expected wrong secret to fail verification")
	}
}
