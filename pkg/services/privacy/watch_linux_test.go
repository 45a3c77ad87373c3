//go:build linux

package privacy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInotifyStreamSeesOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := watchDevice(path)
	if err != nil {
		t.Skipf("inotify unavailable: %v", err)
	}
	defer st.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	mask, err := st.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if mask&accessMask == 0 {
		t.Errorf("mask = %#x, want access bits", mask)
	}
}

func TestInotifyStreamEndsWhenFileRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := watchDevice(path)
	if err != nil {
		t.Skipf("inotify unavailable: %v", err)
	}
	defer st.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := st.Next(ctx); err != io.EOF {
		t.Errorf("Next after remove = %v, want io.EOF", err)
	}
}

func TestInotifyStreamCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := watchDevice(path)
	if err != nil {
		t.Skipf("inotify unavailable: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := st.Next(ctx); err != context.DeadlineExceeded {
		t.Errorf("Next = %v, want deadline exceeded", err)
	}
}
