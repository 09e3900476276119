package admission

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/silencecut/silencecut-api/internal/store"
)

func TestCheck_SizeCeilings(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name    string
		isPaid  bool
		sizes   []int64
		wantErr error
	}{
		{
			name:  "free at exact ceiling",
			sizes: []int64{limits.FreeMaxFileBytes},
		},
		{
			name:    "free one byte over",
			sizes:   []int64{limits.FreeMaxFileBytes + 1},
			wantErr: ErrFileTooLarge,
		},
		{
			name:   "paid at exact ceiling",
			isPaid: true,
			sizes:  []int64{limits.ProMaxFileBytes},
		},
		{
			name:    "paid one byte over",
			isPaid:  true,
			sizes:   []int64{limits.ProMaxFileBytes + 1},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "free user does not get the paid ceiling",
			sizes:   []int64{limits.FreeMaxFileBytes + 1},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "one oversized file rejects the whole batch",
			isPaid:  true,
			sizes:   []int64{1, limits.ProMaxFileBytes + 1, 1},
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := limits.Check(Request{IsPaid: tt.isPaid, FileSizes: tt.sizes})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Check() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheck_BatchRules(t *testing.T) {
	limits := DefaultLimits()

	t.Run("empty batch", func(t *testing.T) {
		err := limits.Check(Request{IsPaid: true})
		if !errors.Is(err, ErrNoFiles) {
			t.Fatalf("Check() = %v, want ErrNoFiles", err)
		}
	})

	t.Run("free single file ok", func(t *testing.T) {
		if err := limits.Check(Request{FileSizes: []int64{1}}); err != nil {
			t.Fatalf("Check() = %v, want nil", err)
		}
	})

	t.Run("free multiple files rejected", func(t *testing.T) {
		err := limits.Check(Request{FileSizes: []int64{1, 1}})
		if !errors.Is(err, ErrBatchNotAllowed) {
			t.Fatalf("Check() = %v, want ErrBatchNotAllowed", err)
		}
	})

	t.Run("paid batch at max ok", func(t *testing.T) {
		sizes := make([]int64, limits.MaxBatchFiles)
		for i := range sizes {
			sizes[i] = 1
		}
		if err := limits.Check(Request{IsPaid: true, FileSizes: sizes}); err != nil {
			t.Fatalf("Check() = %v, want nil", err)
		}
	})

	t.Run("paid batch over max rejected", func(t *testing.T) {
		sizes := make([]int64, limits.MaxBatchFiles+1)
		for i := range sizes {
			sizes[i] = 1
		}
		err := limits.Check(Request{IsPaid: true, FileSizes: sizes})
		if !errors.Is(err, ErrBatchTooLarge) {
			t.Fatalf("Check() = %v, want ErrBatchTooLarge", err)
		}
	})

	t.Run("size is checked before batch rules", func(t *testing.T) {
		err := limits.Check(Request{FileSizes: []int64{limits.FreeMaxFileBytes + 1, 1}})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("Check() = %v, want ErrFileTooLarge", err)
		}
	})
}

func TestResolveFormat(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name      string
		isPaid    bool
		requested string
		want      store.OutputFormat
	}{
		{"free gets default", false, "", store.DefaultFormat},
		{"free request silently overridden", false, "flac", store.DefaultFormat},
		{"paid empty gets default", true, "", store.DefaultFormat},
		{"paid wav honored", true, "wav", store.FormatWAV},
		{"paid flac honored", true, "flac", store.FormatFLAC},
		{"paid unknown falls back", true, "ogg", store.DefaultFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := limits.ResolveFormat(tt.isPaid, tt.requested); got != tt.want {
				t.Errorf("ResolveFormat(%v, %q) = %q, want %q", tt.isPaid, tt.requested, got, tt.want)
			}
		})
	}
}

func TestEvictOldestIfNeeded(t *testing.T) {
	ctx := context.Background()

	limits := DefaultLimits()
	limits.FreeMaxProjects = 2

	seed := func(t *testing.T, st *store.Memory, userID string, n int) []*store.Project {
		t.Helper()
		projects := make([]*store.Project, n)
		for i := 0; i < n; i++ {
			p := &store.Project{Name: "p", UserID: userID}
			if err := st.CreateProject(ctx, p); err != nil {
				t.Fatalf("CreateProject() error = %v", err)
			}
			projects[i] = p
		}
		return projects
	}

	t.Run("paid user is never evicted", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, "u1", 5)
		policy := NewPolicy(limits, st, nil)

		if err := policy.EvictOldestIfNeeded(ctx, "u1", true); err != nil {
			t.Fatalf("EvictOldestIfNeeded() error = %v", err)
		}
		if count, _ := st.CountProjects(ctx, "u1"); count != 5 {
			t.Errorf("projects = %d, want 5", count)
		}
	})

	t.Run("below ceiling is a no-op", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, "u1", 1)
		policy := NewPolicy(limits, st, nil)

		if err := policy.EvictOldestIfNeeded(ctx, "u1", false); err != nil {
			t.Fatalf("EvictOldestIfNeeded() error = %v", err)
		}
		if count, _ := st.CountProjects(ctx, "u1"); count != 1 {
			t.Errorf("projects = %d, want 1", count)
		}
	})

	t.Run("at ceiling evicts the oldest", func(t *testing.T) {
		st := store.NewMemory()
		projects := seed(t, st, "u1", 2)
		policy := NewPolicy(limits, st, nil)

		if err := policy.EvictOldestIfNeeded(ctx, "u1", false); err != nil {
			t.Fatalf("EvictOldestIfNeeded() error = %v", err)
		}
		if count, _ := st.CountProjects(ctx, "u1"); count != 1 {
			t.Fatalf("projects = %d, want 1", count)
		}
		if _, err := st.GetProject(ctx, projects[0].ID); !errors.Is(err, store.ErrProjectNotFound) {
			t.Errorf("oldest project still present, err = %v", err)
		}
		if _, err := st.GetProject(ctx, projects[1].ID); err != nil {
			t.Errorf("newer project evicted: %v", err)
		}
	})

	t.Run("eviction removes backing files and tolerates missing ones", func(t *testing.T) {
		st := store.NewMemory()
		dir := t.TempDir()

		p := &store.Project{Name: "p", UserID: "u1"}
		if err := st.CreateProject(ctx, p); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		original := filepath.Join(dir, "take.mp3")
		if err := os.WriteFile(original, []byte("x"), 0o640); err != nil {
			t.Fatal(err)
		}
		f := &store.File{
			ProjectID:         p.ID,
			OriginalFileName:  "take.mp3",
			OriginalFilePath:  original,
			ProcessedFilePath: filepath.Join(dir, "never_written.mp3"),
			Status:            store.StatusCompleted,
		}
		if err := st.CreateFile(ctx, f); err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}
		seed(t, st, "u1", 1)

		policy := NewPolicy(limits, st, nil)
		if err := policy.EvictOldestIfNeeded(ctx, "u1", false); err != nil {
			t.Fatalf("EvictOldestIfNeeded() error = %v", err)
		}
		if _, err := os.Stat(original); !os.IsNotExist(err) {
			t.Errorf("original file still on disk, err = %v", err)
		}
	})

	t.Run("no projects at all", func(t *testing.T) {
		st := store.NewMemory()
		policy := NewPolicy(limits, st, nil)
		if err := policy.EvictOldestIfNeeded(ctx, "u1", false); err != nil {
			t.Fatalf("EvictOldestIfNeeded() error = %v", err)
		}
	})
}
