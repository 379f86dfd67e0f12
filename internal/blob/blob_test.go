package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

func TestStorage(t *testing.T) {
	ctx := context.Background()

	backends := map[string]func(t *testing.T) Storage{
		"Memory": func(t *testing.T) Storage { return NewMemoryStorage() },
		"Filesystem": func(t *testing.T) Storage {
			s, err := NewFilesystemStorage(t.TempDir())
			if err != nil {
				t.Fatalf("failed to create filesystem storage: %v", err)
			}
			return s
		},
	}

	for name, newStorage := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("WriteRead", func(t *testing.T) {
				s := newStorage(t)
				n, err := s.Write(ctx, "audio/a", strings.NewReader("hello world"))
				if err != nil {
					t.Fatalf("write failed: %v", err)
				}
				if n != 11 {
					t.Errorf("expected 11 bytes written, got %d", n)
				}
				if got := readAll(t, s, "audio/a", Range{}); got != "hello world" {
					t.Errorf("expected full blob, got %q", got)
				}
			})

			t.Run("RangedRead", func(t *testing.T) {
				s := newStorage(t)
				if _, err := s.Write(ctx, "audio/a", strings.NewReader("hello world")); err != nil {
					t.Fatalf("write failed: %v", err)
				}
				if got := readAll(t, s, "audio/a", Range{Offset: 6}); got != "world" {
					t.Errorf("expected suffix, got %q", got)
				}
				if got := readAll(t, s, "audio/a", Range{Offset: 6, Length: 3}); got != "wor" {
					t.Errorf("expected window, got %q", got)
				}
				if got := readAll(t, s, "audio/a", Range{Offset: 100}); got != "" {
					t.Errorf("expected empty read past the end, got %q", got)
				}
			})

			t.Run("NegativeOffsetRejected", func(t *testing.T) {
				s := newStorage(t)
				if _, err := s.Write(ctx, "audio/a", strings.NewReader("hello")); err != nil {
					t.Fatalf("write failed: %v", err)
				}
				_, err := s.Read(ctx, "audio/a", Range{Offset: -1})
				if shared.KindOf(err) != shared.KindInvalid {
					t.Errorf("expected invalid error, got %v", err)
				}
			})

			t.Run("MissingKey", func(t *testing.T) {
				s := newStorage(t)
				_, err := s.Read(ctx, "audio/missing", Range{})
				if shared.KindOf(err) != shared.KindNotFound {
					t.Errorf("expected not found error, got %v", err)
				}
			})

			t.Run("Delete", func(t *testing.T) {
				s := newStorage(t)
				if _, err := s.Write(ctx, "audio/a", strings.NewReader("hello")); err != nil {
					t.Fatalf("write failed: %v", err)
				}
				if err := s.Delete(ctx, "audio/a"); err != nil {
					t.Fatalf("delete failed: %v", err)
				}
				if err := s.Delete(ctx, "audio/a"); err != nil {
					t.Errorf("expected deleting a missing key to succeed, got %v", err)
				}
				if _, err := s.Read(ctx, "audio/a", Range{}); shared.KindOf(err) != shared.KindNotFound {
					t.Errorf("expected not found after delete, got %v", err)
				}
			})
		})
	}
}

func readAll(t *testing.T, s Storage, key string, rng Range) string {
	t.Helper()
	r, err := s.Read(context.Background(), key, rng)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to drain blob: %v", err)
	}
	return string(data)
}
