package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	data, err := Encrypt("pass", []byte("m/44'/60'/0'"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := Decrypt("pass", data)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(plain) != "m/44'/60'/0'" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt("other", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTamperedFails(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	data[len(data)-2] ^= 0xFF
	if _, err := Decrypt("pass", data); !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected auth or envelope error, got %v", err)
	}
}

func TestDecryptRejectsPlaintext(t *testing.T) {
	if _, err := Decrypt("pass", []byte(`{"mnemonic":"abandon"}`)); !errors.Is(err, ErrPlaintextData) {
		t.Fatalf("expected ErrPlaintextData, got %v", err)
	}
}

func TestWriteEncryptedJSONRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore", "wallet.enc")
	if err := WriteEncryptedJSON(path, "pass", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected keystore permissions: %v", info.Mode().Perm())
	}
	plain, err := ReadDecryptedFile(path, "pass")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(plain) != `{"k":"v"}` {
		t.Fatalf("unexpected payload: %s", plain)
	}
}
