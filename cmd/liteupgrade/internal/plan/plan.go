// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plan assembles the staged upgrade from Linux Lite series 6
// to series 7.
//
// # Description
//
// Build returns the ordered stage catalog the engine walks: system
// checks, apt source rewrites, the distribution upgrade itself, the
// LibreOffice bundle swap, cleanup, branding and verification. Stage
// weights reflect the observed wall-clock share of each phase; the
// distribution upgrade dominates with 20 of the 48 active units.
//
// Every stand-in action mirrors the messages its real counterpart
// would produce so a dry run reads like a faithful preview.
package plan

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/branding"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/bundle"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/series"
	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/sources"
)

const (
	aptGetPath = "/usr/bin/apt-get"
	dpkgPath   = "/usr/bin/dpkg"

	// connectivityHost is dialled to confirm the mirror network is
	// reachable before anything is touched.
	connectivityHost    = "archive.ubuntu.com:80"
	connectivityTimeout = 5 * time.Second
)

// noninteractiveEnv keeps apt and dpkg from prompting while their
// output is streamed into the run log.
var noninteractiveEnv = map[string]string{
	"DEBIAN_FRONTEND":          "noninteractive",
	"NEEDRESTART_MODE":         "a",
	"UBUNTU_FRONTEND":          "noninteractive",
	"APT_LISTCHANGES_FRONTEND": "none",
	"LC_ALL":                   "C.UTF-8",
}

// aptGet builds an apt-get invocation with the conffile policy every
// unattended upgrade step uses: keep the local file, take the package
// default only when no local edit exists.
func aptGet(args ...string) (string, []string) {
	base := []string{
		"-y",
		"-o", "Dpkg::Options::=--force-confdef",
		"-o", "Dpkg::Options::=--force-confold",
	}
	return aptGetPath, append(base, args...)
}

// Options configures the stage catalog.
type Options struct {
	// DryRun builds the supporting managers in preview mode so their
	// stand-ins report per-file detail without touching anything.
	DryRun bool

	// ReenablePPAs activates the final stage that restores allowlisted
	// third-party sources after the upgrade.
	ReenablePPAs bool

	// AptRoot overrides the apt configuration directory. Empty means
	// /etc/apt.
	AptRoot string

	// CacheDir overrides the bundle cache directory. Empty selects
	// the effective cache dir for the current uid.
	CacheDir string

	// BundleURL overrides the LibreOffice bundle location.
	BundleURL string

	// BrandingPaths overrides the release identity file locations.
	// The zero value means the live system paths.
	BrandingPaths *branding.Paths

	// AppsDir overrides the desktop entry directory.
	AppsDir string

	// RequiredTools are the binaries the tooling check verifies.
	// Nil means apt-get and dpkg at their stock locations.
	RequiredTools []string

	// Geteuid reports the effective uid. Nil means os.Geteuid.
	Geteuid func() int

	// Dial opens the connectivity probe. Nil means net.DialTimeout.
	Dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

func (o *Options) geteuid() int {
	if o.Geteuid != nil {
		return o.Geteuid()
	}
	return os.Geteuid()
}

func (o *Options) dial(network, addr string, timeout time.Duration) (net.Conn, error) {
	if o.Dial != nil {
		return o.Dial(network, addr, timeout)
	}
	return net.DialTimeout(network, addr, timeout)
}

func (o *Options) requiredTools() []string {
	if o.RequiredTools != nil {
		return o.RequiredTools
	}
	return []string{aptGetPath, dpkgPath}
}

func (o *Options) appsDir() string {
	if o.AppsDir != "" {
		return o.AppsDir
	}
	return bundle.AppsDir
}

// command returns an operation that runs one external command, with a
// stand-in that previews the exact command line.
func command(name string, kind engine.Kind, bin string, args ...string) engine.Operation {
	line := strings.Join(append([]string{bin}, args...), " ")
	return engine.Operation{
		Name: name,
		Kind: kind,
		Run: func(ctx context.Context, ec *engine.ExecContext) error {
			return ec.Command(ctx, bin, args...)
		},
		Simulate: func(_ context.Context, ec *engine.ExecContext) error {
			ec.Emitf("[dry-run] Would run: %s", line)
			return nil
		},
	}
}

// emitterAdapter lets the supporting managers log through the
// engine's execution context.
type emitterAdapter struct {
	ec *engine.ExecContext
}

func (a emitterAdapter) Emitf(format string, args ...any) { a.ec.Emitf(format, args...) }
func (a emitterAdapter) Warnf(format string, args ...any) { a.ec.Warnf(format, args...) }

// Build returns the full upgrade plan in execution order.
func Build(opts Options) ([]engine.Stage, error) {
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		var err error
		cacheDir, err = bundle.EffectiveCacheDir(opts.geteuid())
		if err != nil {
			return nil, fmt.Errorf("preparing cache directory: %w", err)
		}
	}
	fetcher := &bundle.Fetcher{URL: opts.BundleURL, CacheDir: cacheDir}

	brandPaths := branding.DefaultPaths()
	if opts.BrandingPaths != nil {
		brandPaths = *opts.BrandingPaths
	}

	// One Manager serves the whole run so state recorded early, like
	// which third-party lists the disable stage turned off, is still
	// there when the re-enable stage previews its work. It carries the
	// dry-run flag itself so its stand-ins can report per-file
	// decisions; only the emitter is rebound to each stage's context.
	var shared *sources.Manager
	newSources := func(ec *engine.ExecContext) *sources.Manager {
		if shared == nil {
			shared = sources.NewManager(opts.AptRoot, ec.DryRun(), emitterAdapter{ec})
		} else {
			shared.SetOutput(emitterAdapter{ec})
		}
		return shared
	}
	newBranding := func(ec *engine.ExecContext) *branding.Updater {
		m := newSources(ec)
		return &branding.Updater{Paths: brandPaths, Editor: m.Editor(), Out: emitterAdapter{ec}}
	}

	stages := []engine.Stage{
		systemCheckStage(&opts, brandPaths.LLVer),
		disableThirdPartyStage(newSources),
		fixBrokenStage(),
		ensureToolsStage(&opts),
		releaseUpgradeStage(newSources),
		autoResolveStage(),
		libreOfficeStage(&opts, fetcher),
		postUpgradeStage(),
		brandingStage(newBranding),
		verifyStage(brandPaths.OSRelease),
		reenableStage(newSources, opts.ReenablePPAs),
	}
	return stages, nil
}

func systemCheckStage(opts *Options, llverPath string) engine.Stage {
	// The installed series comes from the one-line llver marker. A
	// system already on the target series (or newer) must not be
	// upgraded again; a missing marker only draws a warning because
	// respins sometimes ship without it.
	checkSeries := func(_ context.Context, ec *engine.ExecContext) error {
		raw, err := os.ReadFile(llverPath)
		if err != nil {
			ec.Warnf("Could not read %s; skipping series eligibility check.", llverPath)
			return nil
		}
		current := strings.TrimSpace(string(raw))
		cmp, err := series.Compare(current, branding.ToVersion)
		if err != nil {
			return fmt.Errorf("unrecognised release marker in %s: %w", llverPath, err)
		}
		if cmp >= 0 {
			return fmt.Errorf("this system reports %q and is already on series %s or newer",
				current, branding.ToVersion)
		}
		path, err := series.UpgradePath(current,
			[]string{branding.FromVersion, branding.ToVersion},
			series.PathOptions{Target: branding.ToVersion})
		if err != nil {
			return fmt.Errorf("no upgrade path from %q to %s: %w",
				current, branding.ToVersion, err)
		}
		ec.Emitf("Installed release %s; upgrade path: %s.", current, strings.Join(path, " -> "))
		return nil
	}
	return engine.Stage{
		Name:   "System check & preparation",
		Weight: 1,
		Class:  engine.Mandatory,
		Operations: []engine.Operation{
			{
				Name:     "verify installed series",
				Kind:     engine.KindQuery,
				Run:      checkSeries,
				Simulate: checkSeries,
			},
			{
				Name: "check internet connectivity",
				Kind: engine.KindQuery,
				Run: func(_ context.Context, ec *engine.ExecContext) error {
					conn, err := opts.dial("tcp", connectivityHost, connectivityTimeout)
					if err != nil {
						ec.Emitf("No internet connectivity to %s.", connectivityHost)
						return fmt.Errorf("no route to %s: %w", connectivityHost, err)
					}
					conn.Close()
					ec.Emit("Internet connectivity confirmed.")
					return nil
				},
			},
		},
	}
}

func disableThirdPartyStage(newSources func(*engine.ExecContext) *sources.Manager) engine.Stage {
	switchCodename := func(_ context.Context, ec *engine.ExecContext) error {
		m := newSources(ec)
		if n := m.UpdateLiteCodename(); n > 0 {
			ec.Emitf("Switched %d Linux Lite repository file(s) to %s.", n, sources.LiteToCodename)
		}
		return nil
	}
	disable := func(_ context.Context, ec *engine.ExecContext) error {
		m := newSources(ec)
		n, err := m.DisableThirdParty()
		if err != nil {
			return err
		}
		ec.Emitf("Third-party sources handled (%d disabled).", n)
		return nil
	}
	update, updateArgs := aptGet("update")
	return engine.Stage{
		Name:   "Disable third-party & update Linux Lite repo",
		Weight: 3,
		Class:  engine.Mandatory,
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			{
				Name:     "switch Linux Lite repository codename",
				Kind:     engine.KindConfigure,
				Run:      switchCodename,
				Simulate: switchCodename,
			},
			command("refresh package lists", engine.KindMutate, update, updateArgs...),
			{
				Name:     "disable third-party sources",
				Kind:     engine.KindConfigure,
				Run:      disable,
				Simulate: disable,
			},
		},
	}
}

func fixBrokenStage() engine.Stage {
	mk := func(name string, bin string, args ...string) engine.Operation {
		return command(name, engine.KindMutate, bin, args...)
	}
	fInstall, fInstallArgs := aptGet("-f", "install")
	update, updateArgs := aptGet("update")
	autoremove, autoremoveArgs := aptGet("autoremove", "--purge")
	clean, cleanArgs := aptGet("clean")
	return engine.Stage{
		Name:   "Fix broken packages & configure pending",
		Weight: 4,
		Class:  engine.Mandatory,
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			mk("configure pending packages", dpkgPath, "--configure", "-a"),
			mk("repair broken dependencies", fInstall, fInstallArgs...),
			mk("refresh package lists", update, updateArgs...),
			mk("autoremove unused packages", autoremove, autoremoveArgs...),
			mk("clean package cache", clean, cleanArgs...),
		},
	}
}

func ensureToolsStage(opts *Options) engine.Stage {
	return engine.Stage{
		Name:   "Ensure upgrade tools",
		Weight: 2,
		Class:  engine.Mandatory,
		Operations: []engine.Operation{
			{
				Name: "verify apt tooling",
				Kind: engine.KindQuery,
				Run: func(_ context.Context, ec *engine.ExecContext) error {
					var missing []string
					for _, tool := range opts.requiredTools() {
						if _, err := os.Stat(tool); err != nil {
							missing = append(missing, tool)
						}
					}
					if len(missing) > 0 {
						return fmt.Errorf("missing required tool(s): %s", strings.Join(missing, ", "))
					}
					ec.Emit("APT tooling available for the release upgrade.")
					return nil
				},
			},
		},
	}
}

func releaseUpgradeStage(newSources func(*engine.ExecContext) *sources.Manager) engine.Stage {
	retarget := func(_ context.Context, ec *engine.ExecContext) error {
		m := newSources(ec)
		changed, err := m.RetargetUbuntuCodename()
		if err != nil {
			return err
		}
		if changed > 0 {
			ec.Emitf("Updated %d apt source file(s) to %s.", changed, sources.UbuntuToCodename)
		} else {
			ec.Emitf("No apt source entries required %s to %s changes.",
				sources.UbuntuFromCodename, sources.UbuntuToCodename)
		}
		return nil
	}
	update, updateArgs := aptGet("update")
	distUpgrade, distUpgradeArgs := aptGet("dist-upgrade")
	return engine.Stage{
		Name:   "Release upgrade to 24.04",
		Weight: 20,
		Class:  engine.Mandatory,
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			{
				Name:     "retarget apt sources",
				Kind:     engine.KindConfigure,
				Run:      retarget,
				Simulate: retarget,
			},
			command("refresh package lists", engine.KindMutate, update, updateArgs...),
			command("distribution upgrade", engine.KindMutate, distUpgrade, distUpgradeArgs...),
		},
	}
}

func autoResolveStage() engine.Stage {
	fInstall, fInstallArgs := aptGet("-f", "install")
	return engine.Stage{
		Name:   "Auto-resolve common issues",
		Weight: 3,
		Class:  engine.Optional,
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			command("configure pending packages", engine.KindMutate, dpkgPath, "--configure", "-a"),
			command("repair broken dependencies", engine.KindMutate, fInstall, fInstallArgs...),
		},
	}
}

func libreOfficeStage(opts *Options, fetcher *bundle.Fetcher) engine.Stage {
	download := engine.Operation{
		Name: "download LibreOffice bundle",
		Kind: engine.KindDownload,
		Run: func(ctx context.Context, ec *engine.ExecContext) error {
			ec.Emitf("Downloading %s", fetcher.ArchivePath())
			return fetcher.Download(ctx)
		},
		Simulate: func(_ context.Context, ec *engine.ExecContext) error {
			ec.Emitf("[dry-run] Would download bundle to %s", fetcher.ArchivePath())
			return nil
		},
	}
	extract := engine.Operation{
		Name: "extract LibreOffice bundle",
		Kind: engine.KindConfigure,
		Run: func(_ context.Context, ec *engine.ExecContext) error {
			ec.Emitf("Extracting bundle to %s", fetcher.ExtractDir())
			return fetcher.Extract()
		},
		Simulate: func(_ context.Context, ec *engine.ExecContext) error {
			ec.Emitf("[dry-run] Would extract bundle to %s", fetcher.ExtractDir())
			return nil
		},
	}
	install := engine.Operation{
		Name: "install bundle packages",
		Kind: engine.KindMutate,
		Run: func(ctx context.Context, ec *engine.ExecContext) error {
			debs, err := bundle.FindDebs(fetcher.ExtractDir())
			if err != nil {
				return err
			}
			if len(debs) == 0 {
				return fmt.Errorf("no .deb files found in %s", fetcher.ExtractDir())
			}
			return ec.Command(ctx, dpkgPath, append([]string{"-i"}, debs...)...)
		},
		Simulate: func(_ context.Context, ec *engine.ExecContext) error {
			ec.Emit("[dry-run] Would install all .deb files from the extracted bundle")
			return nil
		},
	}
	fInstall, fInstallArgs := aptGet("-f", "install")
	purge, purgeArgs := aptGet("remove", "--purge", bundle.PurgePattern)
	removeEntries := engine.Operation{
		Name: "remove stale menu entries",
		Kind: engine.KindConfigure,
		Run: func(_ context.Context, ec *engine.ExecContext) error {
			removed, err := bundle.RemoveDesktopEntries(opts.appsDir(), bundle.DesktopGlob)
			for _, name := range removed {
				ec.Emitf("Removed menu entry %s", name)
			}
			if err != nil {
				ec.Warnf("some menu entries could not be removed: %v", err)
			}
			ec.Emitf("Cleaned %d old menu entries", len(removed))
			return nil
		},
		Simulate: func(_ context.Context, ec *engine.ExecContext) error {
			matches, err := filepath.Glob(filepath.Join(opts.appsDir(), bundle.DesktopGlob))
			if err != nil {
				return err
			}
			for _, path := range matches {
				ec.Emitf("[dry-run] Would remove %s", path)
			}
			return nil
		},
	}
	return engine.Stage{
		Name:   "Install LibreOffice Series 7 bundle",
		Weight: 4,
		Class:  engine.Mandatory,
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			download,
			extract,
			install,
			command("resolve bundle dependencies", engine.KindMutate, fInstall, fInstallArgs...),
			command("purge previous LibreOffice", engine.KindMutate, purge, purgeArgs...),
			removeEntries,
		},
	}
}

func postUpgradeStage() engine.Stage {
	update, updateArgs := aptGet("update")
	fullUpgrade, fullUpgradeArgs := aptGet("full-upgrade")
	autoremove, autoremoveArgs := aptGet("autoremove", "--purge")
	clean, cleanArgs := aptGet("clean")
	return engine.Stage{
		Name:   "Post-upgrade cleanup",
		Weight: 6,
		Class:  engine.Mandatory,
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			command("refresh package lists", engine.KindMutate, update, updateArgs...),
			command("full upgrade", engine.KindMutate, fullUpgrade, fullUpgradeArgs...),
			command("rebuild initramfs", engine.KindMutate, "/usr/sbin/update-initramfs", "-u"),
			command("update grub", engine.KindMutate, "/usr/sbin/update-grub"),
			command("autoremove unused packages", engine.KindMutate, autoremove, autoremoveArgs...),
			command("clean package cache", engine.KindMutate, clean, cleanArgs...),
		},
	}
}

func brandingStage(newBranding func(*engine.ExecContext) *branding.Updater) engine.Stage {
	apply := func(_ context.Context, ec *engine.ExecContext) error {
		changed := newBranding(ec).Apply()
		ec.Emitf("Branding files updated (%d file(s)).", changed)
		return nil
	}
	return engine.Stage{
		Name:   "Update branding/version files",
		Weight: 2,
		Class:  engine.Optional,
		Operations: []engine.Operation{
			{
				Name:     "update release identity files",
				Kind:     engine.KindConfigure,
				Run:      apply,
				Simulate: apply,
			},
		},
	}
}

func verifyStage(osReleasePath string) engine.Stage {
	return engine.Stage{
		Name:   "Verify upgraded release",
		Weight: 1,
		Class:  engine.Mandatory,
		Operations: []engine.Operation{
			{
				Name: "confirm target release",
				Kind: engine.KindConfigure,
				Run: func(_ context.Context, ec *engine.ExecContext) error {
					raw, err := os.ReadFile(osReleasePath)
					if err != nil {
						return fmt.Errorf("reading %s: %w", osReleasePath, err)
					}
					txt := string(raw)
					if !strings.Contains(txt, "24.04") && !strings.Contains(txt, sources.UbuntuToCodename) {
						ec.Warnf("Could not confirm 24.04 in %s. Please review the log.", osReleasePath)
						return fmt.Errorf("upgraded release not confirmed in %s", osReleasePath)
					}
					ec.Emit("Upgrade appears successful: target release 24.04 detected.")
					return nil
				},
				Simulate: func(_ context.Context, ec *engine.ExecContext) error {
					ec.Emit("[dry-run] Skipping release verification")
					return nil
				},
			},
		},
	}
}

func reenableStage(newSources func(*engine.ExecContext) *sources.Manager, enabled bool) engine.Stage {
	update, updateArgs := aptGet("update")
	reenable := func(ctx context.Context, ec *engine.ExecContext) error {
		m := newSources(ec)
		count, err := m.ReenableKnownPPAs()
		if err != nil {
			return err
		}
		ec.Emitf("Re-enabled %d PPA(s).", count)
		if count > 0 && !ec.DryRun() {
			return ec.Command(ctx, update, updateArgs...)
		}
		return nil
	}
	return engine.Stage{
		Name:   "Re-enable known-good PPAs",
		Weight: 2,
		Class:  engine.Conditional,
		When:   func() bool { return enabled },
		Env:    noninteractiveEnv,
		Operations: []engine.Operation{
			{
				Name:     "re-enable allowlisted sources",
				Kind:     engine.KindConfigure,
				Run:      reenable,
				Simulate: reenable,
			},
		},
	}
}
