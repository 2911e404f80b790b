package keyring

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestPassphraseLifecycle(t *testing.T) {
	keyring.MockInit()
	const id = "vault-1"

	if HasPassphrase(id) {
		t.Fatal("Empty keyring should not have a passphrase")
	}
	if _, err := GetPassphrase(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	if err := SavePassphrase(id, []byte("s3cret")); err != nil {
		t.Fatalf("SavePassphrase failed: %v", err)
	}
	if !HasPassphrase(id) {
		t.Error("Passphrase should be stored")
	}
	got, err := GetPassphrase(id)
	if err != nil || string(got) != "s3cret" {
		t.Errorf("GetPassphrase = %q, %v", got, err)
	}
	if HasPassphrase("vault-2") {
		t.Error("Passphrases should be stored per vault")
	}

	if err := DeletePassphrase(id); err != nil {
		t.Fatalf("DeletePassphrase failed: %v", err)
	}
	if HasPassphrase(id) {
		t.Error("Passphrase should be deleted")
	}
	if err := DeletePassphrase(id); err != nil {
		t.Errorf("Deleting a missing passphrase: %v", err)
	}
}
