package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestUserConfigValidateRejectsUnknownQuality(t *testing.T) {
	c := DefaultUserConfig()
	c.Quality = "ultra"

	err := c.Validate()
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestUserConfigValidateRequiresAudioOrVideo(t *testing.T) {
	c := DefaultUserConfig()
	c.WantAudio = false
	c.WantVideo = false

	if err := c.Validate(); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestUserConfigValidateRejectsBothCredentialFields(t *testing.T) {
	c := DefaultUserConfig()
	c.CredentialsBlob = "cookie=1"
	c.CredentialsPath = "/tmp/cookies.txt"

	if err := c.Validate(); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestUserConfigValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultUserConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestRequestValidateRejectsEmptyInput(t *testing.T) {
	r := Request{
		ID:             "req-1",
		ClientIdentity: "client-a",
		Config:         DefaultUserConfig(),
	}

	if err := r.Validate(); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestRequestValidateAcceptsSelectedTargetsWithoutRawInput(t *testing.T) {
	r := Request{
		ID:              "req-2",
		ClientIdentity:  "client-a",
		Config:          DefaultUserConfig(),
		SelectedTargets: []Target{{SourceRef: "abc", URL: "https://example.com/x"}},
	}

	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestNewSessionClearsExistingDirectory(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "req-3", "leftover.txt")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	sess, err := NewSession(root, "req-3")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file to be cleared, stat err = %v", err)
	}
	if _, err := os.Stat(sess.Dir); err != nil {
		t.Fatalf("expected session dir to exist: %v", err)
	}
}

func TestSessionCloseRemovesDirectory(t *testing.T) {
	root := t.TempDir()
	sess, err := NewSession(root, "req-4")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(sess.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected session dir removed, stat err = %v", err)
	}
}
