package auth

import "testing"

func TestHashAndVerifyAPIKey(t *testing.T) {
	t.Parallel()

	hash, err := HashAPIKey("fp_live_0123456789")
	if err != nil {
		t.Fatalf("hash api key: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyAPIKey("fp_live_0123456789", hash) {
		t.Fatalf("expected api key verification to succeed")
	}
	if VerifyAPIKey("fp_live_wrong", hash) {
		t.Fatalf("did not expect wrong key to verify")
	}
	if VerifyAPIKey("fp_live_0123456789", "not-a-bcrypt-hash") {
		t.Fatalf("did not expect malformed hash to verify")
	}
}
