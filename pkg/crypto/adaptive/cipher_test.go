package adaptive

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func TestNewWithType_RoundTrip(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := NewWithType(testKey(), typ)
			if err != nil {
				t.Fatalf("NewWithType() error = %v", err)
			}
			if c.Type() != typ {
				t.Errorf("Type() = %q, want %q", c.Type(), typ)
			}

			plain := []byte("expert weights")
			sealed, err := c.Encrypt(plain, []byte("expert-0"))
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			got, err := c.Decrypt(sealed, []byte("expert-0"))
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("Decrypt() = %q, want %q", got, plain)
			}

			if _, err := c.Decrypt(sealed, []byte("expert-1")); err == nil {
				t.Error("Decrypt() with wrong additional data should fail")
			}
		})
	}
}

func TestNewWithType_Errors(t *testing.T) {
	if _, err := NewWithType(make([]byte, 16), CipherAESGCM); !errors.Is(err, ErrKeySize) {
		t.Errorf("short key error = %v, want ErrKeySize", err)
	}
	if _, err := NewWithType(testKey(), "rot13"); !errors.Is(err, ErrUnknownCipher) {
		t.Errorf("unknown cipher error = %v, want ErrUnknownCipher", err)
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Decrypt([]byte{1, 2, 3}, nil); !errors.Is(err, ErrCiphertextShort) {
		t.Errorf("Decrypt() error = %v, want ErrCiphertextShort", err)
	}
}

func TestEncrypt_NonceUniqueness(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, _ := c.Encrypt([]byte("same"), nil)
	b, _ := c.Encrypt([]byte("same"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestDerive_PerComponentKeys(t *testing.T) {
	c0, err := Derive(testKey(), "expert-0")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	c1, err := Derive(testKey(), "expert-1")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	sealed, err := c0.Encrypt([]byte("state"), nil)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := c1.Decrypt(sealed, nil); err == nil {
		t.Error("a key derived for another component must not decrypt")
	}

	again, err := DeriveWithType(testKey(), "expert-0", c0.Type())
	if err != nil {
		t.Fatalf("DeriveWithType() error = %v", err)
	}
	if _, err := again.Decrypt(sealed, nil); err != nil {
		t.Errorf("re-derived key should decrypt: %v", err)
	}
}

func TestParseKey(t *testing.T) {
	key := testKey()

	got, err := ParseKey(hex.EncodeToString(key))
	if err != nil || !bytes.Equal(got, key) {
		t.Errorf("ParseKey(hex) = %x, %v", got, err)
	}

	got, err = ParseKey(base64.StdEncoding.EncodeToString(key))
	if err != nil || !bytes.Equal(got, key) {
		t.Errorf("ParseKey(base64) = %x, %v", got, err)
	}

	if _, err := ParseKey("abcd"); !errors.Is(err, ErrKeySize) {
		t.Errorf("ParseKey(short) error = %v, want ErrKeySize", err)
	}
	if _, err := ParseKey(""); err == nil {
		t.Error("ParseKey(\"\") should fail")
	}
	if _, err := ParseKey("not a key!"); err == nil {
		t.Error("ParseKey(garbage) should fail")
	}
}
