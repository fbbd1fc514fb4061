package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const testKey = "01234567890123456789012345678901" // 32 bytes

func mustEncryptor(t *testing.T, key string) *Encryptor {
	t.Helper()
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() failed: %v", err)
	}
	return enc
}

func TestNewEncryptor_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"32 bytes", testKey, false},
		{"Too short", "too-short", true},
		{"Empty", "", true},
		{"Too long", testKey + "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("NewEncryptor() error = %v, want %v", err, ErrInvalidKey)
				}
				return
			}
			if err != nil || enc == nil {
				t.Fatalf("NewEncryptor() = %v, %v", enc, err)
			}
		})
	}
}

func TestEncryptDecrypt_SessionPayload(t *testing.T) {
	enc := mustEncryptor(t, testKey)

	plaintexts := []string{
		`{"link_token":"link_1_token_abc","country":"cl"}`,
		"Cuenta Corriente: $1.500 CLP, cafetería ñandú",
		strings.Repeat("movement ", 2000),
	}

	for _, plaintext := range plaintexts {
		ciphertext, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt() failed: %v", err)
		}
		if strings.Contains(ciphertext, "link_token") {
			t.Error("Encrypt() leaked plaintext")
		}

		decrypted, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt() failed: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptDecrypt_EmptyString(t *testing.T) {
	enc := mustEncryptor(t, testKey)

	if got, err := enc.Encrypt(""); err != nil || got != "" {
		t.Errorf("Encrypt(\"\") = %q, %v; want empty", got, err)
	}
	if got, err := enc.Decrypt(""); err != nil || got != "" {
		t.Errorf("Decrypt(\"\") = %q, %v; want empty", got, err)
	}
}

func TestEncrypt_FreshNonce(t *testing.T) {
	enc := mustEncryptor(t, testKey)

	c1, _ := enc.Encrypt("same text")
	c2, _ := enc.Encrypt("same text")
	if c1 == c2 {
		t.Error("Encrypt() produced identical ciphertexts for the same plaintext")
	}
}

func TestDecrypt_Rejects(t *testing.T) {
	enc := mustEncryptor(t, testKey)
	other := mustEncryptor(t, "98765432109876543210987654321098")

	ciphertext, _ := enc.Encrypt("secret data")
	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name       string
		enc        *Encryptor
		ciphertext string
	}{
		{"Tampered", enc, tampered},
		{"Invalid base64", enc, "not-valid-base64!!!"},
		{"Shorter than nonce", enc, "YQ=="},
		{"Wrong key", other, ciphertext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.enc.Decrypt(tt.ciphertext); err == nil {
				t.Error("Decrypt() succeeded, want error")
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("a-long-application-secret", "session")
	if err != nil {
		t.Fatalf("DeriveKey() failed: %v", err)
	}
	if len(k1) != 32 {
		t.Fatalf("DeriveKey() length = %d, want 32", len(k1))
	}

	k2, _ := DeriveKey("a-long-application-secret", "session")
	if k1 != k2 {
		t.Error("DeriveKey() is not deterministic")
	}

	k3, _ := DeriveKey("a-long-application-secret", "cookie")
	if k1 == k3 {
		t.Error("DeriveKey() ignored purpose")
	}

	if _, err := DeriveKey("", "session"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("DeriveKey(\"\") error = %v, want %v", err, ErrInvalidKey)
	}

	// Derived keys are usable.
	mustEncryptor(t, k1)
}
