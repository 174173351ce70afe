package auth

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", WithClock(fixedClock(issued)))

	token, err := codec.Issue(Subject{ID: "user-123", DisplayName: "Ada", Role: "admin"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want user-123", claims.UserID)
	}
	if claims.DisplayName != "Ada" {
		t.Errorf("DisplayName = %q, want Ada", claims.DisplayName)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}

	wantExpiry := issued.Add(DefaultTokenTTL)
	if !claims.ExpiresAt.Time.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, wantExpiry)
	}
	if !claims.IssuedAt.Time.Before(claims.ExpiresAt.Time) {
		t.Error("IssuedAt is not before ExpiresAt")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	codec := NewCodec("test-secret")

	token, err := codec.Issue(Subject{ID: "user-123"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	for i := 0; i < len(token); i++ {
		tampered := []byte(token)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}

		if _, err := codec.Verify(string(tampered)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(tampered byte %d) error = %v, want ErrInvalidToken", i, err)
		}
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", WithTTL(time.Hour), WithClock(fixedClock(issued)))

	token, err := codec.Issue(Subject{ID: "user-123"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Still valid just before expiry.
	codec.now = fixedClock(issued.Add(time.Hour - time.Second))
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("Verify() before expiry error = %v", err)
	}

	// Deterministically invalid once the clock passes expiry.
	codec.now = fixedClock(issued.Add(time.Hour + time.Second))
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() after expiry error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewCodec("secret-one")
	verifier := NewCodec("secret-two")

	token, err := issuer.Issue(Subject{ID: "user-123"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() with wrong secret error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyUniformError(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", WithTTL(time.Minute), WithClock(fixedClock(issued)))

	expired, _ := codec.Issue(Subject{ID: "user-123"})
	codec.now = fixedClock(issued.Add(time.Hour))

	_, expErr := codec.Verify(expired)
	_, sigErr := codec.Verify("not.a.token")

	// Expiry and signature failures must be indistinguishable.
	if expErr == nil || sigErr == nil || expErr.Error() != sigErr.Error() {
		t.Errorf("errors differ: %v vs %v", expErr, sigErr)
	}
}

func TestNewCodecEmptySecretPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewCodec(\"\") did not panic")
		}
	}()
	NewCodec("")
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"plain token", "Bearer abc123", "abc123", true},
		{"padded token", "Bearer   padded   ", "padded", true},
		{"empty header", "", "", false},
		{"wrong scheme", "Basic xyz", "", false},
		{"prefix only", "Bearer", "", false},
		{"prefix with spaces only", "Bearer    ", "", false},
		{"lowercase scheme", "bearer abc123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBearer(tt.header)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractBearer(%q) = (%q, %v), want (%q, %v)",
					tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
