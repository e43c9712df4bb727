// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bundle fetches and unpacks the LibreOffice package bundle
// shipped alongside the series 7 release.
//
// # Description
//
// The series upgrade does not take LibreOffice from the Ubuntu
// archive. Linux Lite ships a curated .deb bundle as a tar.gz on its
// repository server. This package handles the download into the
// upgrade cache directory, the archive extraction, and the discovery
// of the .deb files to hand to dpkg. Installing and purging packages
// stays with the caller, which runs dpkg and apt-get itself.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultURL is where the series 7 LibreOffice bundle lives.
	DefaultURL = "https://repo.linuxliteos.com/upgrade/7.6/libreoffice/loffice76.tar.gz"

	// CacheDirRoot and CacheDirFallback hold downloaded artifacts.
	// The fallback is used when the process cannot write to /var.
	CacheDirRoot     = "/var/cache/ll-series-upgrade"
	CacheDirFallback = "/tmp/ll-series-upgrade"

	// PurgePattern matches the previous LibreOffice packages that are
	// removed after the bundle installs.
	PurgePattern = "libreoffice7.5*"

	// DesktopGlob matches the stale menu entries of the previous
	// LibreOffice version.
	DesktopGlob = "libreoffice7.5-*.desktop"

	// AppsDir is where desktop menu entries live.
	AppsDir = "/usr/share/applications"

	archiveName = "loffice76.tar.gz"
	extractName = "loffice76"
)

// EffectiveCacheDir returns the cache directory for the given
// effective uid, creating it if needed. Root gets the /var/cache
// location, everyone else the /tmp fallback.
func EffectiveCacheDir(euid int) (string, error) {
	dir := CacheDirFallback
	if euid == 0 {
		dir = CacheDirRoot
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Fetcher downloads and extracts one bundle into a cache directory.
type Fetcher struct {
	// URL of the tar.gz bundle. Empty means DefaultURL.
	URL string

	// CacheDir receives the archive and the extracted tree.
	CacheDir string

	// Client issues the download request. Nil means
	// http.DefaultClient.
	Client *http.Client
}

func (f *Fetcher) url() string {
	if f.URL == "" {
		return DefaultURL
	}
	return f.URL
}

func (f *Fetcher) client() *http.Client {
	if f.Client == nil {
		return http.DefaultClient
	}
	return f.Client
}

// ArchivePath is where Download stores the bundle.
func (f *Fetcher) ArchivePath() string {
	return filepath.Join(f.CacheDir, archiveName)
}

// ExtractDir is where Extract unpacks the bundle.
func (f *Fetcher) ExtractDir() string {
	return filepath.Join(f.CacheDir, extractName)
}

// Download fetches the bundle into the cache directory.
func (f *Fetcher) Download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(), nil)
	if err != nil {
		return err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", f.url(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %s", f.url(), resp.Status)
	}
	out, err := os.Create(f.ArchivePath())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(f.ArchivePath())
		return fmt.Errorf("writing %s: %w", f.ArchivePath(), err)
	}
	return out.Close()
}

// Extract unpacks the downloaded archive into ExtractDir. Entries
// that would escape the extraction directory are rejected.
func (f *Fetcher) Extract() error {
	in, err := os.Open(f.ArchivePath())
	if err != nil {
		return err
	}
	defer in.Close()
	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.ArchivePath(), err)
	}
	defer gz.Close()

	dest := f.ExtractDir()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.ArchivePath(), err)
		}
		target, err := sanitizePath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and special files have no business in a
			// package bundle.
			continue
		}
	}
}

// sanitizePath joins name under dest and refuses escapes.
func sanitizePath(dest, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry %q has an absolute path", name)
	}
	target := filepath.Join(dest, name)
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return target, nil
}

// FindDebs walks root and returns every .deb file, sorted by path.
func FindDebs(root string) ([]string, error) {
	var debs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".deb") {
			debs = append(debs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debs, nil
}

// RemoveDesktopEntries deletes menu entries matching glob under
// appsDir and returns the removed file names. Individual removal
// failures are collected, not fatal.
func RemoveDesktopEntries(appsDir, glob string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(appsDir, glob))
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, filepath.Base(path))
	}
	return removed, errors.Join(errs...)
}
