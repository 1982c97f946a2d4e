// Package sizeprobe computes the current byte size of files, directory trees
// and lists of either while another process may still be writing them.
package sizeprobe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Policy decides what happens when a single file inside a target cannot be
// stat'ed.
type Policy int

const (
	// PolicyIgnore counts an inaccessible file as zero bytes and carries on.
	PolicyIgnore Policy = iota
	// PolicyFailFast aborts the probe with a *ProbeError.
	PolicyFailFast
)

func (p Policy) String() string {
	switch p {
	case PolicyIgnore:
		return "ignore"
	case PolicyFailFast:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps "ignore" / "fail" onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "ignore":
		return PolicyIgnore, nil
	case "fail", "fail-fast":
		return PolicyFailFast, nil
	default:
		return PolicyIgnore, fmt.Errorf("unknown io policy %q (want ignore or fail)", s)
	}
}

// ProbeError reports a per-file access failure. It is only surfaced under
// PolicyFailFast.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober measures targets. The zero value is not usable; use New.
type Prober struct {
	fs     afero.Fs
	policy Policy
}

// Option configures a Prober.
type Option func(*Prober)

// WithFs swaps the filesystem the prober reads from.
func WithFs(fsys afero.Fs) Option {
	return func(p *Prober) {
		if fsys != nil {
			p.fs = fsys
		}
	}
}

// WithPolicy sets the per-file error policy.
func WithPolicy(policy Policy) Option {
	return func(p *Prober) {
		p.policy = policy
	}
}

// New creates a Prober reading the OS filesystem with PolicyIgnore.
func New(opts ...Option) *Prober {
	p := &Prober{
		fs:     afero.NewOsFs(),
		policy: PolicyIgnore,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the configured per-file error policy.
func (p *Prober) Policy() Policy {
	return p.policy
}

// Size returns the total byte size of target. Missing paths count as zero.
// Nothing is cached: every call walks the filesystem again.
func (p *Prober) Size(ctx context.Context, target Target) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch t := target.(type) {
	case nil:
		return 0, nil
	case List:
		var total int64
		for _, elem := range t {
			n, err := p.Size(ctx, elem)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	case Path:
		return p.sizeOfPath(ctx, string(t))
	default:
		return 0, fmt.Errorf("unsupported target type %T", target)
	}
}

func (p *Prober) sizeOfPath(ctx context.Context, path string) (int64, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		// Not created yet (or already gone): nothing to count.
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, p.handle(path, err)
	}

	if info.IsDir() {
		return p.walk(ctx, path)
	}
	if info.Mode().IsRegular() {
		return info.Size(), nil
	}
	return 0, nil
}

func (p *Prober) walk(ctx context.Context, root string) (int64, error) {
	var total int64
	err := afero.Walk(p.fs, root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return p.handle(path, err)
		}
		if info.IsDir() {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			resolved, statErr := p.fs.Stat(path)
			if statErr != nil {
				if errors.Is(statErr, fs.ErrNotExist) {
					return nil
				}
				return p.handle(path, statErr)
			}
			info = resolved
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && err != filepath.SkipDir {
		return total, err
	}
	return total, nil
}

// handle applies the error policy to a single access failure.
func (p *Prober) handle(path string, err error) error {
	if p.policy == PolicyFailFast {
		return &ProbeError{Path: path, Err: err}
	}
	return nil
}
