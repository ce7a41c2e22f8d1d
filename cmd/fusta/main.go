// fusta mounts a (multi)FASTA file as a POSIX directory tree via FUSE.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/fustafs"
	"github.com/fusta-fs/fusta/lib/overlay"
	"github.com/fusta-fs/fusta/lib/version"
)

// daemonizeEnv marks a re-exec'd child so it knows not to daemonize
// again, distinguishing it from a user invoking fusta with --no-daemon.
const daemonizeEnv = "FUSTA_FOREGROUND"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		mountpoint     string
		cacheKind      string
		maxCacheMB     int64
		noDaemon       bool
		nonEmpty       bool
		sep            string
		allowOverwrite bool
		verbosity      int
		showVersion    bool
	)

	flags := pflag.NewFlagSet("fusta", pflag.ContinueOnError)
	flags.StringVarP(&mountpoint, "mountpoint", "o", "", "mount directory (default: fusta-<basename>)")
	flags.StringVar(&cacheKind, "cache", "mmap", "backing store variant: file, mmap, or memory")
	flags.Int64VarP(&maxCacheMB, "max-cache", "C", 500, "overlay memory ceiling in MB")
	flags.BoolVarP(&noDaemon, "no-daemon", "D", false, "keep in foreground")
	flags.BoolVarP(&nonEmpty, "non-empty", "E", false, "proceed if mountpoint not empty")
	flags.StringVarP(&sep, "sep", "S", ",", "CSV field separator for infos.csv")
	flags.BoolVarP(&allowOverwrite, "allow-overwrite", "W", false, "permit append/rename collisions by tombstoning the prior fragment")
	flags.CountVarP(&verbosity, "verbose", "v", "increase verbosity (repeatable)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit (combine with -v for build details)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		if verbosity > 0 {
			fmt.Printf("fusta %s\n", version.Full())
		} else {
			fmt.Printf("fusta %s\n", version.Info())
		}
		return nil
	}

	args := flags.Args()
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one positional argument <FASTA>, got %d", len(args))
	}
	sourcePath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}

	if mountpoint == "" {
		mountpoint = "fusta-" + stripExt(filepath.Base(sourcePath))
	}
	if len(sep) != 1 {
		return fmt.Errorf("--sep must be exactly one character, got %q", sep)
	}

	logLevel := slog.LevelWarn
	switch {
	case verbosity >= 2:
		logLevel = slog.LevelDebug
	case verbosity == 1:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if !noDaemon && os.Getenv(daemonizeEnv) == "" {
		return daemonize(mountpoint)
	}

	cat, store, appended, err := buildCatalog(sourcePath, cacheKind, allowOverwrite)
	if err != nil {
		return fmt.Errorf("building index for %s: %w", sourcePath, err)
	}

	server, err := fustafs.Mount(fustafs.Options{
		Mountpoint: mountpoint,
		SourcePath: sourcePath,
		Catalog:    cat,
		Store:      store,
		Appended:   appended,
		Ceiling:    overlay.NewCeiling(maxCacheMB * 1 << 20),
		Separator:  sep[0],
		NonEmpty:   nonEmpty,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", mountpoint, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("received shutdown signal, unmounting")
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
	}()

	server.Wait()
	return nil
}

// buildCatalog reads sourcePath with the Index Builder, constructs the
// catalog, and assembles the primary backing store per cacheKind plus
// the dedicated Resident store for append-ingested fragments.
func buildCatalog(sourcePath, cacheKind string, allowOverwrite bool) (*catalog.Catalog, *backing.Dispatcher, *backing.Resident, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, nil, nil, err
	}

	records, err := fasta.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("parsing FASTA: %w", err)
	}

	cat := catalog.New(1, allowOverwrite)
	for _, rec := range records {
		if _, err := cat.Insert(rec); err != nil {
			f.Close()
			return nil, nil, nil, err
		}
	}

	appended := backing.NewResident()

	var primary backing.Store
	switch cacheKind {
	case "file":
		primary = backing.NewPositional(f)
	case "mmap":
		mapped, err := backing.NewMapped(f)
		if err != nil {
			f.Close()
			return nil, nil, nil, fmt.Errorf("memory-mapping source: %w", err)
		}
		primary = mapped
	case "memory":
		resident := backing.NewResident()
		for _, frag := range cat.IterActive() {
			if err := resident.Load(f, frag); err != nil {
				f.Close()
				return nil, nil, nil, fmt.Errorf("loading %q into memory: %w", frag.ID, err)
			}
		}
		f.Close()
		primary = resident
	default:
		f.Close()
		return nil, nil, nil, fmt.Errorf("unknown --cache variant %q (want file, mmap, or memory)", cacheKind)
	}

	return cat, backing.NewDispatcher(primary, appended), appended, nil
}

// daemonize re-execs the current binary with the foreground marker
// set and a detached session. A single detached child is enough here;
// there's no long-lived parent process for it to outlive.
func daemonize(mountpoint string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}

	child := exec.Command(exe, os.Args[1:]...)
	child.Env = append(os.Environ(), daemonizeEnv+"=1")
	child.Stdout = nil
	child.Stderr = nil
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting background process: %w", err)
	}

	fmt.Printf("fusta mounted at %s (pid %d)\n", mountpoint, child.Process.Pid)
	return nil
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
