package downloads

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir(), Retention: time.Hour})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_SaveGet(t *testing.T) {
	s, _ := newTestStore(t)

	f, err := s.Save("report.DOCX", "application/octet-stream", []byte("data"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := uuid.Parse(f.ID); err != nil {
		t.Errorf("ID %q is not a uuid", f.ID)
	}
	if filepath.Ext(f.Path()) != ".docx" {
		t.Errorf("Path() = %q, want .docx extension", f.Path())
	}
	if f.Size != 4 {
		t.Errorf("Size = %d, want 4", f.Size)
	}
	if f.ExpiresAt.Sub(f.CreatedAt) != time.Hour {
		t.Errorf("retention = %v, want 1h", f.ExpiresAt.Sub(f.CreatedAt))
	}

	got, err := s.Get(f.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, err := os.ReadFile(got.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "data" {
		t.Errorf("contents = %q", data)
	}
}

func TestStore_GetErrors(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Get("../../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Get(traversal) error = %v, want ErrInvalidID", err)
	}
	if _, err := s.Get(uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestStore_Expiry(t *testing.T) {
	s, now := newTestStore(t)

	f, err := s.Save("a.docx", "", []byte("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	*now = now.Add(59 * time.Minute)
	if _, err := s.Get(f.ID); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	*now = now.Add(time.Minute)
	if _, err := s.Get(f.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() at expiry error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Errorf("expired file still on disk: %v", err)
	}
}

func TestStore_Sweep(t *testing.T) {
	s, now := newTestStore(t)

	old, _ := s.Save("old.docx", "", []byte("1"))
	*now = now.Add(30 * time.Minute)
	fresh, _ := s.Save("fresh.docx", "", []byte("2"))
	*now = now.Add(31 * time.Minute)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, err := os.Stat(old.Path()); !os.IsNotExist(err) {
		t.Errorf("old file not removed")
	}
	if _, err := s.Get(fresh.ID); err != nil {
		t.Errorf("Get(fresh) error = %v", err)
	}

	list := s.List()
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Errorf("List() = %+v", list)
	}
}

func TestStore_Janitor(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir(), Retention: time.Millisecond, SweepInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := s.Save("a.docx", "", []byte("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(f.Path()); os.IsNotExist(err) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("janitor did not remove expired file")
}

func TestNew_RemovesOrphans(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, uuid.NewString()+".docx")
	keep := filepath.Join(dir, "notes.txt")
	for _, p := range []string{orphan, keep} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	if _, err := New(Config{Dir: dir}); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphaned download not removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("unrelated file removed")
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.docx", "report.docx"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\thesis.docx`, "thesis.docx"},
		{"a:b?.docx", "a_b_.docx"},
		{"", "document"},
		{" . ", "document"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SafeName(tt.in); got != tt.want {
				t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormattedName(t *testing.T) {
	if got := FormattedName("thesis.pdf"); got != "thesis_formatted.docx" {
		t.Errorf("FormattedName() = %q", got)
	}
	if got := FormattedName(""); got != "formatted_document.docx" {
		t.Errorf("FormattedName(empty) = %q", got)
	}
}
