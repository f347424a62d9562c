// Package discovery finds the browser event spool files the extension
// writes.
//
// A spool directory holds *.jsonl files directly, or one subdirectory
// per browser profile:
//
//	spool/
//	  events.jsonl             profile "default"
//	  work/events.jsonl        profile "work"
//	  personal/2024-03.jsonl   profile "personal"
//
// Hidden files and directories are skipped.
//
// Example usage:
//
//	d := discovery.New([]string{"~/.config/tab-monitor/spool"}, log)
//	files, err := d.Discover()
//	if err != nil {
//	    return err
//	}
//	for _, f := range files {
//	    fmt.Printf("%s: %s\n", f.Profile, f.Path)
//	}
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xmhha/tab-monitor/pkg/logger"
)

// DefaultProfile names spool files placed directly in a spool directory.
const DefaultProfile = "default"

// SpoolExt is the extension of spool files.
const SpoolExt = ".jsonl"

// SpoolFile represents a discovered spool file.
type SpoolFile struct {
	// Profile is the browser profile the file belongs to.
	Profile string

	// Path is the absolute path to the JSONL file.
	Path string

	// Dir is the spool directory the file was found under.
	Dir string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime int64 // Unix timestamp
}

// Discoverer provides methods for discovering spool files.
type Discoverer interface {
	// Discover scans every configured spool directory.
	//
	// Missing directories are skipped with a warning, so the engine can
	// start before the extension has written anything.
	// Results are sorted by path.
	Discover() ([]SpoolFile, error)

	// DiscoverDir scans a single spool directory.
	//
	// Returns ErrDirNotFound when the directory does not exist.
	DiscoverDir(dir string) ([]SpoolFile, error)

	// Dirs returns the expanded spool directories.
	Dirs() []string
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	dirs   []string
	logger logger.Logger
}

// New creates a new Discoverer instance.
//
// Parameters:
//   - dirs: Spool directories to scan; a leading ~ is expanded
//   - log: Logger instance for diagnostic messages
func New(dirs []string, log logger.Logger) Discoverer {
	expanded := make([]string, 0, len(dirs))
	for _, d := range dirs {
		expanded = append(expanded, ExpandHome(d))
	}

	return &discoverer{
		dirs:   expanded,
		logger: logger.ForComponent(log, "discovery"),
	}
}

// Dirs implements Discoverer.Dirs.
func (d *discoverer) Dirs() []string {
	out := make([]string, len(d.dirs))
	copy(out, d.dirs)
	return out
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]SpoolFile, error) {
	var all []SpoolFile

	for _, dir := range d.dirs {
		files, err := d.DiscoverDir(dir)
		if err != nil {
			if errors.Is(err, ErrDirNotFound) {
				d.logger.Warn("spool directory not found, skipping", "path", dir)
				continue
			}
			return nil, err
		}

		all = append(all, files...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	d.logger.Debug("discovery complete", "spool_files", len(all))
	return all, nil
}

// DiscoverDir implements Discoverer.DiscoverDir.
func (d *discoverer) DiscoverDir(dir string) ([]SpoolFile, error) {
	dir = ExpandHome(dir)

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, dir)
	}

	files, err := d.scanDir(dir, dir, DefaultProfile)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || hidden(entry.Name()) {
			continue
		}

		profileDir := filepath.Join(dir, entry.Name())
		profileFiles, scanErr := d.scanDir(dir, profileDir, entry.Name())
		if scanErr != nil {
			d.logger.Warn("failed to scan profile directory",
				"path", profileDir,
				"error", scanErr)
			continue
		}

		files = append(files, profileFiles...)
	}

	return files, nil
}

// scanDir collects the spool files directly inside dir.
func (d *discoverer) scanDir(root, dir, profile string) ([]SpoolFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make([]SpoolFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || hidden(name) || !strings.HasSuffix(name, SpoolExt) {
			continue
		}

		path := filepath.Join(dir, name)
		info, infoErr := entry.Info()
		if infoErr != nil {
			d.logger.Warn("failed to get file info",
				"path", path,
				"error", infoErr)
			continue
		}

		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}

		files = append(files, SpoolFile{
			Profile: profile,
			Path:    abs,
			Dir:     root,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
	}

	d.logger.Debug("scanned spool directory",
		"path", dir,
		"files_found", len(files))

	return files, nil
}

// IsSpoolFile reports whether path names a spool file.
func IsSpoolFile(path string) bool {
	name := filepath.Base(path)
	return !hidden(name) && strings.HasSuffix(name, SpoolExt)
}

// ProfileOf returns the profile of a spool file under one of dirs: the
// subdirectory it sits in, or DefaultProfile for files directly in a
// spool directory. Paths outside dirs belong to DefaultProfile.
func ProfileOf(dirs []string, path string) string {
	for _, dir := range dirs {
		rel, err := filepath.Rel(ExpandHome(dir), path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}

		parts := strings.Split(filepath.ToSlash(rel), "/")
		switch len(parts) {
		case 1:
			return DefaultProfile
		case 2:
			return parts[0]
		}
	}

	return DefaultProfile
}

// ExpandHome expands ~ in file paths to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[1:])
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
