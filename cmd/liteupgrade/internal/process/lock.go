// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package process guards against concurrent upgrade invocations.
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Locker is the single-instance guard for the upgrade. The lock
// provides inter-process synchronization; use it from one goroutine.
type Locker interface {
	// Acquire attempts to get an exclusive lock.
	Acquire() error

	// Release releases the lock if held. Safe to call multiple times
	// or if the lock was never acquired.
	Release() error

	// IsHeld reports whether this instance currently holds the lock.
	IsHeld() bool

	// HolderPID returns the PID of the process holding the lock, or 0
	// if none can be determined.
	HolderPID() int
}

// ErrLockHeld is returned when another upgrade process holds the lock.
type ErrLockHeld struct {
	HolderPID int
	LockPath  string
}

func (e *ErrLockHeld) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("another upgrade is already running (PID %d)", e.HolderPID)
	}
	return fmt.Sprintf("another upgrade is already running (check: lsof %s)", e.LockPath)
}

// UpgradeLock implements Locker with flock(2) on a lock file.
//
// # Description
//
// A series upgrade rewrites apt sources and runs dpkg; two instances
// racing each other can leave the package system half-configured.
// The lock is advisory and released by the kernel if the process
// dies, so a crash never wedges future upgrades.
//
// # Limitations
//
//   - Advisory only; other tooling is not blocked from running apt.
//   - flock does not work reliably on network filesystems.
type UpgradeLock struct {
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// NewUpgradeLock creates a lock rooted in dir. An empty dir means
// /run when writable, else the system temp directory. The lock is not
// acquired yet.
func NewUpgradeLock(dir string) *UpgradeLock {
	if dir == "" {
		dir = defaultLockDir()
	}
	return &UpgradeLock{
		lockPath: filepath.Join(dir, "lite-upgrade.lock"),
		pidPath:  filepath.Join(dir, "lite-upgrade.pid"),
	}
}

func defaultLockDir() string {
	if unix.Access("/run", unix.W_OK) == nil {
		return "/run"
	}
	return os.TempDir()
}

// Acquire takes the lock without blocking. When another process holds
// it, an *ErrLockHeld carrying the holder PID is returned.
func (l *UpgradeLock) Acquire() error {
	if l.held {
		return nil
	}
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", l.lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return &ErrLockHeld{HolderPID: l.readHolderPID(), LockPath: l.lockPath}
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.lockFile = f
	l.held = true

	// Best effort; the flock is authoritative, the PID file is for
	// error messages.
	_ = os.WriteFile(l.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
	return nil
}

// Release drops the lock. The lock file stays behind for faster
// subsequent acquires.
func (l *UpgradeLock) Release() error {
	if !l.held || l.lockFile == nil {
		return nil
	}
	os.Remove(l.pidPath)
	err := unix.Flock(int(l.lockFile.Fd()), unix.LOCK_UN)
	l.lockFile.Close()
	l.lockFile = nil
	l.held = false
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsHeld reports local state only; it does not re-check the flock.
func (l *UpgradeLock) IsHeld() bool {
	return l.held
}

// HolderPID reads the PID file left by the holder. May be stale if
// the holder crashed.
func (l *UpgradeLock) HolderPID() int {
	return l.readHolderPID()
}

// LockPath returns the lock file location, for error messages.
func (l *UpgradeLock) LockPath() string {
	return l.lockPath
}

func (l *UpgradeLock) readHolderPID() int {
	data, err := os.ReadFile(l.pidPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

var _ Locker = (*UpgradeLock)(nil)
