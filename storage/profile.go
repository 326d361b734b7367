// Package storage handles what browserctl keeps on disk: the browser
// profile directory and persisted files such as screenshots.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agenttools/browserctl/env"
	"github.com/agenttools/browserctl/log"

	"github.com/spf13/afero"
)

// ErrNoProfileSource is returned when a seeded profile is requested without
// a source profile to seed it from.
var ErrNoProfileSource = errors.New("no source profile to copy from")

// ErrOverlappingProfile is returned when the profile directory and the
// source profile contain one another. Mirroring would then delete one of
// them.
var ErrOverlappingProfile = errors.New("profile directory and source profile overlap")

// Profile is the user data directory a browser instance runs with.
//
// The directory is shared by every port: all instances launched with the
// same cache directory use the same profile, so only one seeded instance
// should run at a time.
type Profile struct {
	fs        afero.Fs
	cacheDir  string
	sourceDir string
	logger    *log.Logger
}

// NewProfile returns a profile living in cacheDir, seeded from sourceDir
// on request.
func NewProfile(fs afero.Fs, cacheDir, sourceDir string, logger *log.Logger) *Profile {
	return &Profile{
		fs:        fs,
		cacheDir:  filepath.Clean(cacheDir),
		sourceDir: sourceDir,
		logger:    logger,
	}
}

// Dir returns the profile directory.
func (p *Profile) Dir() string {
	return p.cacheDir
}

// Prepare creates the profile directory and, when seeded is true, mirrors
// the source profile into it. Without seeding, an existing directory is
// reused as is.
func (p *Profile) Prepare(seeded bool) (string, error) {
	if err := p.fs.MkdirAll(p.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating profile directory %q: %w", p.cacheDir, err)
	}
	if !seeded {
		p.logger.Debugf("Profile:prepare", "dir:%q", p.cacheDir)
		return p.cacheDir, nil
	}
	if p.sourceDir == "" {
		return "", ErrNoProfileSource
	}

	p.logger.Debugf("Profile:prepare", "dir:%q syncing from %q", p.cacheDir, p.sourceDir)
	if err := Mirror(p.fs, p.sourceDir, p.cacheDir); err != nil {
		return "", fmt.Errorf("syncing profile: %w", err)
	}

	return p.cacheDir, nil
}

// Mirror makes dst an exact copy of src: files missing or differing in
// size or modification time are copied, and anything in dst that is not
// in src is removed. Symbolic links are recreated when fs supports them.
// Special files (sockets, devices) are skipped.
func Mirror(fs afero.Fs, src, dst string) error {
	src, dst = filepath.Clean(src), filepath.Clean(dst)

	fi, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("reading source profile: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("source profile %q is not a directory", src)
	}
	if within(src, dst) || within(dst, src) {
		return fmt.Errorf("%w: %q and %q", ErrOverlappingProfile, dst, src)
	}
	if err := mirrorDir(fs, dst, fi.Mode().Perm()); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	err = afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		switch mode := info.Mode(); {
		case mode.IsDir():
			err = mirrorDir(fs, target, mode.Perm())
		case mode&os.ModeSymlink != 0:
			var ok bool
			ok, err = mirrorSymlink(fs, path, target)
			if !ok {
				return err
			}
		case mode.IsRegular():
			err = mirrorFile(fs, path, target, info)
		default:
			return nil
		}
		seen[rel] = struct{}{}

		return err
	})
	if err != nil {
		return fmt.Errorf("copying %q to %q: %w", src, dst, err)
	}

	return prune(fs, dst, seen)
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if ls, ok := fs.(afero.Lstater); ok {
		fi, _, err := ls.LstatIfPossible(path)
		return fi, err //nolint:wrapcheck
	}
	return fs.Stat(path) //nolint:wrapcheck
}

func mirrorDir(fs afero.Fs, target string, perm os.FileMode) error {
	if fi, err := lstat(fs, target); err == nil && !fi.IsDir() {
		if err := fs.RemoveAll(target); err != nil {
			return fmt.Errorf("replacing %q with a directory: %w", target, err)
		}
	}
	if err := fs.MkdirAll(target, perm); err != nil {
		return fmt.Errorf("creating directory %q: %w", target, err)
	}
	return fs.Chmod(target, perm) //nolint:wrapcheck
}

func mirrorFile(fs afero.Fs, path, target string, info os.FileInfo) error {
	if fi, err := lstat(fs, target); err == nil {
		switch {
		case fi.Mode().IsRegular() && fi.Size() == info.Size() && fi.ModTime().Equal(info.ModTime()):
			return nil
		case !fi.Mode().IsRegular():
			if err := fs.RemoveAll(target); err != nil {
				return fmt.Errorf("replacing %q with a file: %w", target, err)
			}
		}
	}

	if err := copyFile(fs, path, target, info.Mode().Perm()); err != nil {
		return err
	}
	if err := fs.Chmod(target, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode of %q: %w", target, err)
	}
	if err := fs.Chtimes(target, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("setting times of %q: %w", target, err)
	}

	return nil
}

func copyFile(fs afero.Fs, path, target string, perm os.FileMode) (err error) {
	in, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening %q: %w", path, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %q: %w", target, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %q: %w", target, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %q: %w", path, err)
	}

	return nil
}

// mirrorSymlink reports false when fs cannot handle links and the link
// was skipped.
func mirrorSymlink(fs afero.Fs, path, target string) (bool, error) {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return false, nil
	}
	linker, ok := fs.(afero.Linker)
	if !ok {
		return false, nil
	}

	link, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return false, fmt.Errorf("reading link %q: %w", path, err)
	}
	if fi, err := lstat(fs, target); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			if cur, err := reader.ReadlinkIfPossible(target); err == nil && cur == link {
				return true, nil
			}
		}
		if err := fs.RemoveAll(target); err != nil {
			return false, fmt.Errorf("replacing %q with a link: %w", target, err)
		}
	}
	if err := linker.SymlinkIfPossible(link, target); err != nil {
		return false, fmt.Errorf("creating link %q: %w", target, err)
	}

	return true, nil
}

// prune removes everything below dst that is not in keep.
func prune(fs afero.Fs, dst string, keep map[string]struct{}) error {
	var extra []string
	err := afero.Walk(fs, dst, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dst, path)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if rel == "." {
			return nil
		}
		if _, ok := keep[rel]; ok {
			return nil
		}
		extra = append(extra, path)
		if info.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing %q: %w", dst, err)
	}

	sort.Strings(extra)
	for _, path := range extra {
		if err := fs.RemoveAll(path); err != nil {
			return fmt.Errorf("removing %q: %w", path, err)
		}
	}

	return nil
}

// DefaultCacheDir returns the directory browser profiles are kept in.
func DefaultCacheDir(lookup env.LookupFunc) (string, error) {
	home, err := homeDir(lookup)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "scraping"), nil
}

// DefaultSourceDir returns the Google Chrome user data directory on goos.
func DefaultSourceDir(goos string, lookup env.LookupFunc) (string, error) {
	if goos == "windows" {
		if dir, ok := lookup("LOCALAPPDATA"); ok && dir != "" {
			return filepath.Join(dir, "Google", "Chrome", "User Data"), nil
		}
	}
	home, err := homeDir(lookup)
	if err != nil {
		return "", err
	}

	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Google", "Chrome"), nil
	case "windows":
		return filepath.Join(home, "AppData", "Local", "Google", "Chrome", "User Data"), nil
	default:
		return filepath.Join(home, ".config", "google-chrome"), nil
	}
}

func homeDir(lookup env.LookupFunc) (string, error) {
	for _, k := range []string{"HOME", "USERPROFILE"} {
		if dir, ok := lookup(k); ok && dir != "" {
			return dir, nil
		}
	}
	return "", errors.New("cannot find the home directory: neither HOME nor USERPROFILE is set")
}
