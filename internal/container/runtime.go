// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container finds a local docker or podman installation and runs
// one-shot filter containers that read stdin and write stdout. read_pdf
// uses it for the markitdown conversion backend.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Engine binaries, in detection order.
const (
	Docker = "docker"
	Podman = "podman"
)

// ErrNoRuntime is returned by Detect when no usable engine was found.
var ErrNoRuntime = errors.New("no container runtime available")

// maxStderr bounds the container output quoted in errors.
const maxStderr = 512

// Runtime runs filter containers.
type Runtime interface {
	// Name returns the engine binary ("docker" or "podman").
	Name() string

	// ImageExists returns nil when the image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes a throwaway container with no network and a read-only
	// root filesystem, piping stdin and stdout. Cancelling ctx kills it.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// commander runs engine commands; tests substitute a scripted one.
type commander interface {
	LookPath(file string) (string, error)
	Probe(ctx context.Context, name string, args ...string) error
	Pipe(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osCommander struct{}

func (osCommander) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osCommander) Probe(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osCommander) Pipe(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine is a Runtime for one binary. Docker and podman differ only in
// how an image is probed.
type engine struct {
	bin        string
	imageProbe []string
	cmd        commander
}

func newEngine(bin string, cmd commander) (*engine, error) {
	switch bin {
	case Docker:
		return &engine{bin: bin, imageProbe: []string{"image", "inspect"}, cmd: cmd}, nil
	case Podman:
		return &engine{bin: bin, imageProbe: []string{"image", "exists"}, cmd: cmd}, nil
	}
	return nil, fmt.Errorf("unknown container runtime %q (want %s or %s)", bin, Docker, Podman)
}

func (e *engine) Name() string { return e.bin }

// usable reports whether the binary is on PATH and its daemon answers.
func (e *engine) usable(ctx context.Context) error {
	if _, err := e.cmd.LookPath(e.bin); err != nil {
		return err
	}
	if err := e.cmd.Probe(ctx, e.bin, "info"); err != nil {
		return fmt.Errorf("%s info: %w", e.bin, err)
	}
	return nil
}

func (e *engine) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), e.imageProbe...), image)
	if err := e.cmd.Probe(ctx, e.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	args := []string{"run", "--rm", "-i", "--network", "none", "--read-only", image}
	var stderr bytes.Buffer
	if err := e.cmd.Pipe(ctx, e.bin, args, stdin, stdout, &stderr); err != nil {
		if msg := tail(stderr.String(), maxStderr); msg != "" {
			return fmt.Errorf("running %s container %s: %w: %s", e.bin, image, err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", e.bin, image, err)
	}
	return nil
}

// tail keeps the last n bytes of trimmed s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

// Detect returns the preferred engine, or the first usable one of docker
// and podman when preferred is empty. The error wraps ErrNoRuntime when
// nothing usable was found.
func Detect(ctx context.Context, preferred string, logger *zap.Logger) (Runtime, error) {
	return detect(ctx, preferred, osCommander{}, logger)
}

func detect(ctx context.Context, preferred string, cmd commander, logger *zap.Logger) (Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	candidates := []string{Docker, Podman}
	if preferred != "" {
		candidates = []string{strings.ToLower(preferred)}
	}

	var causes []string
	for _, bin := range candidates {
		e, err := newEngine(bin, cmd)
		if err != nil {
			return nil, err
		}
		if err := e.usable(ctx); err != nil {
			logger.Debug("container runtime unusable", zap.String("runtime", bin), zap.Error(err))
			causes = append(causes, err.Error())
			continue
		}
		logger.Debug("container runtime detected", zap.String("runtime", bin))
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoRuntime, strings.Join(causes, "; "))
}
