package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/agenttools/browserctl/env"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listTree(t *testing.T, fs afero.Fs, root string) []string {
	t.Helper()

	var paths []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		if rel != "." {
			paths = append(paths, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)

	return paths
}

func writeFiles(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()

	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(data), 0o644))
	}
}

func TestProfilePrepare(t *testing.T) {
	t.Parallel()

	const (
		src   = "/home/user/.config/google-chrome"
		cache = "/home/user/.cache/scraping"
	)

	t.Run("ephemeral_creates_dir", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		dir, err := NewProfile(fs, cache, src, nil).Prepare(false)
		require.NoError(t, err)
		assert.Equal(t, cache, dir)

		fi, err := fs.Stat(cache)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	})

	t.Run("ephemeral_keeps_content", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, cache, map[string]string{"Cookies": "old"})
		writeFiles(t, fs, src, map[string]string{"Default/Preferences": "{}"})

		_, err := NewProfile(fs, cache, src, nil).Prepare(false)
		require.NoError(t, err)
		assert.Equal(t, []string{"Cookies"}, listTree(t, fs, cache))
	})

	t.Run("seeded_mirrors_source", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, src, map[string]string{
			"A":                   "a",
			"B":                   "b",
			"Default/Preferences": "{}",
		})
		writeFiles(t, fs, cache, map[string]string{
			"C":         "stale",
			"stale/D":   "stale",
			"Default/X": "stale",
			"A":         "different",
		})

		dir, err := NewProfile(fs, cache, src, nil).Prepare(true)
		require.NoError(t, err)
		assert.Equal(t, cache, dir)

		assert.Equal(t, listTree(t, fs, src), listTree(t, fs, cache))
		bb, err := afero.ReadFile(fs, filepath.Join(cache, "A"))
		require.NoError(t, err)
		assert.Equal(t, "a", string(bb))
	})

	t.Run("seeded_without_source", func(t *testing.T) {
		t.Parallel()

		_, err := NewProfile(afero.NewMemMapFs(), cache, "", nil).Prepare(true)
		assert.ErrorIs(t, err, ErrNoProfileSource)
	})

	t.Run("seeded_missing_source", func(t *testing.T) {
		t.Parallel()

		_, err := NewProfile(afero.NewMemMapFs(), cache, src, nil).Prepare(true)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestMirror(t *testing.T) {
	t.Parallel()

	t.Run("skips_unchanged_files", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/src", map[string]string{"A": "aaaa"})
		require.NoError(t, Mirror(fs, "/src", "/dst"))

		// Same size and time: the quick check considers it unchanged.
		require.NoError(t, afero.WriteFile(fs, "/dst/A", []byte("zzzz"), 0o644))
		fi, err := fs.Stat("/src/A")
		require.NoError(t, err)
		require.NoError(t, fs.Chtimes("/dst/A", fi.ModTime(), fi.ModTime()))

		require.NoError(t, Mirror(fs, "/src", "/dst"))
		bb, err := afero.ReadFile(fs, "/dst/A")
		require.NoError(t, err)
		assert.Equal(t, "zzzz", string(bb))
	})

	t.Run("copies_changed_files", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/src", map[string]string{"A": "aaaa"})
		require.NoError(t, Mirror(fs, "/src", "/dst"))

		mtime := time.Now().Add(time.Hour)
		require.NoError(t, afero.WriteFile(fs, "/src/A", []byte("bbbb"), 0o644))
		require.NoError(t, fs.Chtimes("/src/A", mtime, mtime))

		require.NoError(t, Mirror(fs, "/src", "/dst"))
		bb, err := afero.ReadFile(fs, "/dst/A")
		require.NoError(t, err)
		assert.Equal(t, "bbbb", string(bb))

		fi, err := fs.Stat("/dst/A")
		require.NoError(t, err)
		assert.True(t, mtime.Equal(fi.ModTime()))
	})

	t.Run("replaces_dir_with_file", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/src", map[string]string{"Lock": "x"})
		writeFiles(t, fs, "/dst", map[string]string{"Lock/inner": "y"})

		require.NoError(t, Mirror(fs, "/src", "/dst"))
		assert.Equal(t, []string{"Lock"}, listTree(t, fs, "/dst"))
	})

	t.Run("rejects_dst_inside_src", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/src", map[string]string{"A": "a"})
		assert.ErrorIs(t, Mirror(fs, "/src", "/src/cache"), ErrOverlappingProfile)
		assert.ErrorIs(t, Mirror(fs, "/src", "/src"), ErrOverlappingProfile)
	})

	t.Run("rejects_src_inside_dst", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/home/u", map[string]string{
			".config/google-chrome/Default/Cookies": "c",
			"Documents/thesis.txt":                  "t",
		})
		before := listTree(t, fs, "/home/u")

		err := Mirror(fs, "/home/u/.config/google-chrome", "/home/u")
		assert.ErrorIs(t, err, ErrOverlappingProfile)
		assert.Equal(t, before, listTree(t, fs, "/home/u"))

		_, err = NewProfile(fs, "/home/u", "/home/u/.config/google-chrome", nil).Prepare(true)
		assert.ErrorIs(t, err, ErrOverlappingProfile)
		assert.Equal(t, before, listTree(t, fs, "/home/u"))
	})

	t.Run("sibling_with_common_prefix", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/data/chrome", map[string]string{"A": "a"})
		require.NoError(t, Mirror(fs, "/data/chrome", "/data/chrome-cache"))
		assert.Equal(t, []string{"A"}, listTree(t, fs, "/data/chrome-cache"))
	})

	t.Run("source_not_dir", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/", map[string]string{"src": "a"})
		assert.Error(t, Mirror(fs, "/src", "/dst"))
	})
}

func TestMirrorSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}

	fs := afero.NewOsFs()
	src, dst := filepath.Join(t.TempDir(), "src"), filepath.Join(t.TempDir(), "dst")
	writeFiles(t, fs, src, map[string]string{"A": "a"})
	require.NoError(t, os.Symlink("A", filepath.Join(src, "SingletonLock")))

	require.NoError(t, Mirror(fs, src, dst))
	link, err := os.Readlink(filepath.Join(dst, "SingletonLock"))
	require.NoError(t, err)
	assert.Equal(t, "A", link)

	// Second pass leaves the link in place.
	require.NoError(t, Mirror(fs, src, dst))
	assert.Equal(t, []string{"A", "SingletonLock"}, listTree(t, fs, dst))
}

func TestDefaultDirs(t *testing.T) {
	t.Parallel()

	home := env.MapLookup(map[string]string{"HOME": "/home/u"})

	dir, err := DefaultCacheDir(home)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/u", ".cache", "scraping"), dir)

	_, err = DefaultCacheDir(env.EmptyLookup)
	assert.Error(t, err)

	tests := []struct {
		goos   string
		lookup env.LookupFunc
		want   string
	}{
		{"linux", home, filepath.Join("/home/u", ".config", "google-chrome")},
		{"darwin", home, filepath.Join("/home/u", "Library", "Application Support", "Google", "Chrome")},
		{"windows", env.ConstLookup("LOCALAPPDATA", `C:\Users\u\AppData\Local`),
			filepath.Join(`C:\Users\u\AppData\Local`, "Google", "Chrome", "User Data")},
		{"windows", env.ConstLookup("USERPROFILE", `C:\Users\u`),
			filepath.Join(`C:\Users\u`, "AppData", "Local", "Google", "Chrome", "User Data")},
	}
	for _, tt := range tests {
		got, err := DefaultSourceDir(tt.goos, tt.lookup)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.goos)
	}
}
