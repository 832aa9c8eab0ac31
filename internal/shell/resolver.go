// Package shell decides which executable and argument vector a terminal
// session launches when the caller does not name one explicitly.
package shell

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/termrack/backend/internal/config"
)

// Version is exported to sessions so shell init scripts can detect the host.
const Version = "0.1.0"

// ResolvedCommand is a fully specified launch: executable path, argument
// vector with the process-name token in slot zero, environment, and whether
// the shell should source login initialization.
type ResolvedCommand struct {
	Path       string
	Args       []string
	Env        []string
	LoginShell bool
}

// DisplayName returns the process-name token without the login marker,
// suitable as a default session name.
func (c ResolvedCommand) DisplayName() string {
	if len(c.Args) == 0 {
		return filepath.Base(c.Path)
	}
	if c.LoginShell {
		return strings.TrimPrefix(c.Args[0], "-")
	}
	return c.Args[0]
}

type Resolver struct {
	cfg config.ShellConfig
}

func NewResolver(cfg config.ShellConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve determines the concrete command for a launch request. It never
// fails: when nothing better is found it degrades to the configured system
// shell. Filesystem errors while probing are logged and treated as "not
// found".
func (r *Resolver) Resolve(explicitPath string, explicitArgs []string, cwd string, safeMode bool) ResolvedCommand {
	path := explicitPath
	loginShell := false

	if path == "" {
		path = r.resolveInteractive()
		loginShell = true
	}

	processName := strings.ReplaceAll(filepath.Base(path), "-", " ")
	if loginShell {
		processName = "-" + processName
	}

	args := make([]string, 0, 1+len(explicitArgs))
	args = append(args, processName)
	args = append(args, explicitArgs...)

	return ResolvedCommand{
		Path:       path,
		Args:       args,
		Env:        r.buildEnvironment(cwd, safeMode),
		LoginShell: loginShell,
	}
}

// resolveInteractive walks the policy tiers: user marker file, then shell
// candidates in the prefix bin dir, then the system shell.
func (r *Resolver) resolveInteractive() string {
	if path := r.resolveMarker(); path != "" {
		return path
	}

	for _, name := range r.cfg.Candidates {
		candidate := filepath.Join(r.cfg.PrefixBin, name)
		if isExecutableFile(candidate) {
			return candidate
		}
	}

	return r.cfg.Fallback
}

// resolveMarker probes the user-configured shell marker. Returns "" when the
// marker is absent, broken, or not executable; all errors are best-effort.
func (r *Resolver) resolveMarker() string {
	marker := r.cfg.MarkerFile
	if _, err := os.Lstat(marker); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("shell: checking marker %s: %v", marker, err)
		}
		return ""
	}

	canonical, err := filepath.EvalSymlinks(marker)
	if err != nil {
		log.Printf("shell: resolving marker %s: %v", marker, err)
		return ""
	}

	if !isExecutableFile(canonical) {
		log.Printf("shell: marker %s points to non-executable shell: %s", marker, canonical)
		return ""
	}

	// The multi-call binary provides many personalities keyed off argv[0];
	// invoked under its own name with a login marker it would not behave as
	// a shell, so substitute the configured interpreter.
	if filepath.Base(canonical) == r.cfg.MulticallName {
		return r.cfg.MulticallSubstitute
	}

	return canonical
}

// buildEnvironment constructs the session environment. Safe mode produces a
// minimal environment without prefix entries, for recovering from a broken
// user setup.
func (r *Resolver) buildEnvironment(cwd string, safeMode bool) []string {
	if cwd == "" {
		cwd = r.cfg.Home
	}

	path := r.cfg.PrefixBin + ":/usr/bin:/bin"
	if safeMode {
		path = "/usr/bin:/bin"
	}

	env := []string{
		"HOME=" + r.cfg.Home,
		"PATH=" + path,
		"TERM=" + r.cfg.Term,
		"PWD=" + cwd,
	}
	if !safeMode {
		env = append(env,
			"TMPDIR="+os.TempDir(),
			"LANG=en_US.UTF-8",
			"TERMRACK_VERSION="+Version,
		)
	}
	return env
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}
