package domain

import (
	"testing"
	"time"
)

func TestNewUserHashesPassword(t *testing.T) {
	user, err := NewUser("alice", "alice@example.com", "s3cret-pass", "Alice")
	if err != nil {
		t.Fatalf("NewUser() error: %v", err)
	}
	if user.PasswordHash == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if user.Status != UserStatusActive {
		t.Fatalf("status = %s, want ACTIVE", user.Status)
	}

	if !user.CheckPassword("s3cret-pass") {
		t.Fatal("correct password rejected")
	}
	if user.CheckPassword("wrong") {
		t.Fatal("wrong password accepted")
	}
}

func TestChangePassword(t *testing.T) {
	user, err := NewUser("bob", "bob@example.com", "old-password", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := user.ChangePassword("new-password"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}
	if user.CheckPassword("old-password") {
		t.Fatal("old password still accepted")
	}
	if !user.CheckPassword("new-password") {
		t.Fatal("new password rejected")
	}
}

func TestRecordLogin(t *testing.T) {
	user, err := NewUser("carol", "carol@example.com", "password-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if user.LastLoginAt != nil {
		t.Fatal("fresh user has login time")
	}

	now := time.Now()
	user.RecordLogin(now)
	if user.LastLoginAt == nil || !user.LastLoginAt.Equal(now) {
		t.Fatalf("last login = %v, want %v", user.LastLoginAt, now)
	}
}
