package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"ssfs/internal/auth"
)

func TestRun(t *testing.T) {
	var out bytes.Buffer
	if err := run(strings.NewReader("hunter2\n"), &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	hash := strings.TrimSpace(out.String())
	a, err := auth.New("admin", hash)
	if err != nil {
		t.Fatalf("auth.New(%q): %v", hash, err)
	}
	if !a.Verify(context.Background(), "admin", "hunter2") {
		t.Error("printed hash does not verify the password")
	}
}

func TestRun_EmptyPassword(t *testing.T) {
	if err := run(strings.NewReader("\n"), &bytes.Buffer{}); err == nil {
		t.Error("expected error for empty password")
	}
}
