// Package docker implements runtime.Runtime by driving the docker CLI.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/programme-lv/grader/internal/runtime"
)

const DefaultBinary = "docker"

// daemonErrPrefix starts every error the docker CLI relays from the daemon.
const daemonErrPrefix = "Error response from daemon"

type Client struct {
	bin    string
	logger *slog.Logger
}

var _ runtime.Runtime = (*Client)(nil)

func New(bin string, logger *slog.Logger) *Client {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = DefaultBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{bin: bin, logger: logger}
}

// Ping checks that the docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.run(ctx, "version", nil, "version", "--format", "{{.Server.Version}}")
	return err
}

func (c *Client) FindContainers(ctx context.Context, labelFilter string) ([]string, error) {
	out, err := c.run(ctx, "find", nil, findArgs(labelFilter)...)
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

func (c *Client) CreateContainer(ctx context.Context, spec runtime.ContainerSpec) (string, error) {
	out, err := c.run(ctx, "create", nil, createArgs(spec)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) StartContainer(ctx context.Context, id string) error {
	_, err := c.run(ctx, "start", nil, "start", id)
	return err
}

func (c *Client) StopContainer(ctx context.Context, id string) error {
	_, err := c.run(ctx, "stop", nil, "stop", id)
	return err
}

func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "--force")
	}
	_, err := c.run(ctx, "remove", nil, append(args, id)...)
	return err
}

func (c *Client) InspectContainer(ctx context.Context, id string) (runtime.ContainerInfo, error) {
	out, err := c.run(ctx, "inspect", nil, "container", "inspect", "--format", inspectFormat, id)
	if err != nil {
		return runtime.ContainerInfo{}, err
	}
	info, err := parseInspect(out)
	if err != nil {
		return runtime.ContainerInfo{}, &runtime.Error{Op: "inspect", Err: err}
	}
	return info, nil
}

func (c *Client) InspectImage(ctx context.Context, ref string) (string, error) {
	out, err := c.run(ctx, "inspect_image", nil, "image", "inspect", "--format", "{{.Id}}", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// PutArchive pipes the archive into "docker cp", which accepts both plain
// and gzip-compressed tar streams.
func (c *Client) PutArchive(ctx context.Context, containerID string, destDir string, archive io.Reader) error {
	_, err := c.run(ctx, "put_archive", archive, cpArgs(containerID, destDir)...)
	return err
}

func (c *Client) Exec(ctx context.Context, containerID string, spec runtime.ExecSpec) (io.ReadCloser, error) {
	if len(spec.Cmd) == 0 {
		return nil, &runtime.Error{Op: "exec", Msg: "empty command"}
	}
	cmd := exec.CommandContext(ctx, c.bin, execArgs(containerID, spec)...)
	pr, pw := io.Pipe()
	s := &execStream{pr: pr, done: make(chan struct{}), stderr: headBuffer{max: stderrHeadSize}}
	cmd.Stdout = pw
	cmd.Stderr = io.MultiWriter(pw, &s.stderr)

	c.logger.Debug("docker exec", "container", containerID, "cmd", spec.Cmd, "user", spec.User)
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, &runtime.Error{Op: "exec", Err: err}
	}
	go func() {
		err := cmd.Wait()
		pw.Close()
		s.err = s.mapErr(ctx, err)
		close(s.done)
	}()
	return s, nil
}

type execStream struct {
	pr     *io.PipeReader
	stderr headBuffer
	done   chan struct{}
	err    error
}

func (s *execStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Close waits for the exec'd command. Closing before the output has been
// read to the end discards the rest of it.
func (s *execStream) Close() error {
	s.pr.Close()
	<-s.done
	return s.err
}

func (s *execStream) mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return &runtime.Error{Op: "exec", Err: ctx.Err()}
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &runtime.Error{Op: "exec", Err: err}
	}
	msg := strings.TrimSpace(s.stderr.String())
	if strings.HasPrefix(msg, daemonErrPrefix) {
		return &runtime.Error{Op: "exec", Msg: msg}
	}
	return &runtime.ExitError{Code: exitErr.ExitCode()}
}

// stderrHeadSize bounds the stderr kept from an exec. Only its start is
// inspected for daemon errors.
const stderrHeadSize = 4 << 10

// headBuffer keeps the first max bytes written to it and discards the rest.
type headBuffer struct {
	buf bytes.Buffer
	max int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.max - h.buf.Len(); room > 0 {
		if len(p) > room {
			h.buf.Write(p[:room])
		} else {
			h.buf.Write(p)
		}
	}
	return len(p), nil
}

func (h *headBuffer) String() string {
	return h.buf.String()
}

func (c *Client) run(ctx context.Context, op string, stdin io.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("docker", "args", args)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", &runtime.Error{Op: op, Err: ctx.Err()}
		}
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", &runtime.Error{Op: op, Msg: msg, Err: err}
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", &runtime.Error{Op: op, Msg: msg, Err: classify(msg)}
	}
	return stdout.String(), nil
}

func classify(msg string) error {
	if strings.Contains(strings.ToLower(msg), "no such image") {
		return runtime.ErrNoSuchImage
	}
	return nil
}

func findArgs(labelFilter string) []string {
	return []string{"ps", "--all", "--no-trunc", "--filter", "label=" + labelFilter, "--format", "{{.ID}}"}
}

// createArgs never pulls: a missing image must surface as "no such image".
func createArgs(spec runtime.ContainerSpec) []string {
	args := []string{"create", "--pull", "never"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	keys := make([]string, 0, len(spec.Labels))
	for k := range spec.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+spec.Labels[k])
	}
	return append(args, spec.Image)
}

func execArgs(containerID string, spec runtime.ExecSpec) []string {
	args := []string{"exec"}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	args = append(args, containerID)
	return append(args, spec.Cmd...)
}

func cpArgs(containerID string, destDir string) []string {
	return []string{"cp", "-", containerID + ":" + destDir}
}

const inspectFormat = "{{.Id}}|{{.Image}}|{{.Created}}"

func parseInspect(out string) (runtime.ContainerInfo, error) {
	parts := strings.Split(strings.TrimSpace(out), "|")
	if len(parts) != 3 {
		return runtime.ContainerInfo{}, fmt.Errorf("unexpected inspect output %q", out)
	}
	created, err := time.Parse(time.RFC3339Nano, parts[2])
	if err != nil {
		return runtime.ContainerInfo{}, fmt.Errorf("failed to parse creation time: %w", err)
	}
	return runtime.ContainerInfo{ID: parts[0], ImageID: parts[1], CreatedAt: created}, nil
}

func lines(out string) []string {
	var res []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			res = append(res, l)
		}
	}
	return res
}
