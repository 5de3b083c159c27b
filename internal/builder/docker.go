// Package builder drives the local container build tool: build and push go
// through the CLI, pruning goes through the Engine API.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/dustin/go-humanize"
)

var (
	ErrBuildFailed = errors.New("image build failed")
	ErrNoSpace     = errors.New("no space left on device")
	ErrPushFailed  = errors.New("image push failed")
	ErrPruneFailed = errors.New("image prune failed")
)

const noSpaceMarker = "no space left on device"

// BuildOptions describes one `build` invocation.
type BuildOptions struct {
	ContextDir string
	DockerFile string
	BuildArgs  []string // KEY=VALUE
	Tags       []string
	Pull       bool
}

// Args renders the build command line, without the binary.
func (o BuildOptions) Args() []string {
	args := []string{"build"}
	if o.Pull {
		args = append(args, "--pull")
	}
	for _, a := range o.BuildArgs {
		args = append(args, "--build-arg", a)
	}
	for _, t := range o.Tags {
		args = append(args, "--tag", t)
	}
	if o.DockerFile != "" {
		args = append(args, "-f", o.DockerFile)
	}
	return append(args, o.ContextDir)
}

// Pruner is the slice of the Engine API used for housekeeping.
type Pruner interface {
	ImagesPrune(ctx context.Context, pruneFilters filters.Args) (image.PruneReport, error)
}

type Docker struct {
	binary string
	pruner Pruner
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewDocker returns a builder invoking binary. Subprocess output goes to the
// process' own stdout and stderr.
func NewDocker(binary string, pruner Pruner, logger *log.Logger) *Docker {
	return &Docker{
		binary: binary,
		pruner: pruner,
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// NewDockerFromEnv connects the pruner to the daemon named by DOCKER_HOST and
// friends.
func NewDockerFromEnv(binary string, logger *log.Logger) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDocker(binary, cli, logger), nil
}

// Build runs the build. When the tool reports the disk is full the returned
// error also matches ErrNoSpace.
func (d *Docker) Build(ctx context.Context, opts BuildOptions) error {
	out, err := d.run(ctx, opts.ContextDir, opts.Args()...)
	if err == nil {
		return nil
	}
	if strings.Contains(out, noSpaceMarker) {
		return fmt.Errorf("%w: %w: %w", ErrBuildFailed, ErrNoSpace, err)
	}
	return fmt.Errorf("%w: %w", ErrBuildFailed, err)
}

func (d *Docker) Push(ctx context.Context, ref string) error {
	if _, err := d.run(ctx, "", "push", ref); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPushFailed, ref, err)
	}
	return nil
}

// Prune removes dangling images, or every unused image when all is set.
func (d *Docker) Prune(ctx context.Context, all bool) error {
	args := filters.NewArgs(filters.Arg("dangling", strconv.FormatBool(!all)))
	report, err := d.pruner.ImagesPrune(ctx, args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPruneFailed, err)
	}
	d.logger.Info("pruned images",
		"all", all,
		"deleted", len(report.ImagesDeleted),
		"reclaimed", humanize.Bytes(report.SpaceReclaimed))
	return nil
}

// run streams the subprocess output through and returns a copy of it.
func (d *Docker) run(ctx context.Context, dir string, args ...string) (string, error) {
	d.logger.Debug("running build tool", "cmd", d.binary, "args", args)

	var captured lockedBuffer
	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Dir = dir
	cmd.Stdout = io.MultiWriter(d.stdout, &captured)
	cmd.Stderr = io.MultiWriter(d.stderr, &captured)
	err := cmd.Run()
	return captured.String(), err
}

// lockedBuffer is shared by the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
