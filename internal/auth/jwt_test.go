package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateSessionToken("sess-42", secret)
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.SessionID != "sess-42" {
		t.Errorf("SessionID = %q", claims.SessionID)
	}
	if claims.Role != "session" {
		t.Errorf("Role = %q", claims.Role)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _ := GenerateSessionToken("sess-42", []byte("right"))
	if _, err := ValidateToken(token, []byte("wrong")); err == nil {
		t.Error("Expected validation failure with wrong secret")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token", []byte("secret")); err == nil {
		t.Error("Expected validation failure for malformed token")
	}
}
