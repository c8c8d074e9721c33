// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers engine commands from fixed tables.
type scripted struct {
	onPath map[string]bool
	probes map[string]bool // "bin arg..." that succeed
	pipe   func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

func (s *scripted) LookPath(file string) (string, error) {
	if s.onPath[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("executable file not found: " + file)
}

func (s *scripted) Probe(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if s.probes[key] {
		return nil
	}
	return errors.New("exit status 1")
}

func (s *scripted) Pipe(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if s.pipe == nil {
		return nil
	}
	return s.pipe(name, args, stdin, stdout, stderr)
}

func TestDetect(t *testing.T) {
	both := &scripted{
		onPath: map[string]bool{Docker: true, Podman: true},
		probes: map[string]bool{"docker info": true, "podman info": true},
	}
	tests := []struct {
		name      string
		preferred string
		cmd       *scripted
		want      string
		wantErr   error
	}{
		{"docker first", "", both, Docker, nil},
		{"preferred podman", "podman", both, Podman, nil},
		{"preferred is case-insensitive", "Docker", both, Docker, nil},
		{"podman when docker missing", "", &scripted{
			onPath: map[string]bool{Podman: true},
			probes: map[string]bool{"podman info": true},
		}, Podman, nil},
		{"docker daemon down", "", &scripted{
			onPath: map[string]bool{Docker: true, Podman: true},
			probes: map[string]bool{"podman info": true},
		}, Podman, nil},
		{"nothing usable", "", &scripted{}, "", ErrNoRuntime},
		{"preferred unusable", "docker", &scripted{
			onPath: map[string]bool{Podman: true},
			probes: map[string]bool{"podman info": true},
		}, "", ErrNoRuntime},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tc.preferred, tc.cmd, nil)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, rt.Name())
		})
	}
}

func TestDetectUnknownRuntime(t *testing.T) {
	_, err := detect(context.Background(), "lxc", &scripted{}, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRuntime)
	assert.Contains(t, err.Error(), "lxc")
}

func TestImageExists(t *testing.T) {
	cmd := &scripted{probes: map[string]bool{
		"docker image inspect markitdown:latest": true,
		"podman image exists markitdown:latest":  true,
	}}
	for _, bin := range []string{Docker, Podman} {
		e, err := newEngine(bin, cmd)
		require.NoError(t, err)

		assert.NoError(t, e.ImageExists(context.Background(), "markitdown:latest"), bin)
		err = e.ImageExists(context.Background(), "other:1")
		require.Error(t, err, bin)
		assert.Contains(t, err.Error(), "other:1")
	}
}

func TestRunPipesThroughSandboxedContainer(t *testing.T) {
	var gotName string
	var gotArgs []string
	e, err := newEngine(Podman, &scripted{pipe: func(name string, args []string, stdin io.Reader, stdout, _ io.Writer) error {
		gotName, gotArgs = name, args
		data, _ := io.ReadAll(stdin)
		stdout.Write([]byte("# " + string(data)))
		return nil
	}})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, e.Run(context.Background(), "markitdown:latest", strings.NewReader("paper"), &out))

	assert.Equal(t, "# paper", out.String())
	assert.Equal(t, Podman, gotName)
	assert.Equal(t, []string{"run", "--rm", "-i", "--network", "none", "--read-only", "markitdown:latest"}, gotArgs)
}

func TestRunQuotesContainerStderr(t *testing.T) {
	e, err := newEngine(Docker, &scripted{pipe: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
		stderr.Write([]byte("  Traceback: unsupported PDF\n"))
		return errors.New("exit status 1")
	}})
	require.NoError(t, err)

	err = e.Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1: Traceback: unsupported PDF")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("  abc \n", 10))
	assert.Equal(t, "...def", tail("abcdef", 3))
}
