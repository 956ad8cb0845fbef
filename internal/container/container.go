// Package container maps each submission to exactly one grading container.
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/programme-lv/grader/internal/runtime"
	"github.com/programme-lv/grader/internal/subm"
)

// ErrImageNotBuilt is returned when the assignment image does not exist in
// the runtime yet.
var ErrImageNotBuilt = errors.New("assignment image is not built")

// DuplicateError reports more than one container labelled with the same
// submission uuid. It needs manual cleanup and is never resolved
// automatically.
type DuplicateError struct {
	UUID string
	IDs  []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("found %d containers for submission %s, needs manual cleanup: %s",
		len(e.IDs), e.UUID, strings.Join(e.IDs, ", "))
}

// Image is the assignment image the grading containers are created from.
type Image interface {
	Tag() string
	CurrentImageID(ctx context.Context) (string, error)
}

// State of a submission's grading container.
type State int

const (
	Absent State = iota
	Present
	Stale
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Stale:
		return "stale"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	ContainerID string
	ImageID     string
	// Created is set when a new container was created, either because none
	// existed or because a rebuild was requested.
	Created bool
	// Stale is set when the container's image differs from the
	// assignment's current image.
	Stale bool
}

type Manager struct {
	rt     runtime.Runtime
	logger *slog.Logger
}

func NewManager(rt runtime.Runtime, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{rt: rt, logger: logger}
}

// Resolve returns the submission's grading container, creating it when
// there is none and recreating it when rebuild is set. Running against a
// stale image only produces a warning.
func (m *Manager) Resolve(ctx context.Context, s *subm.Submission, img Image, rebuild bool) (Resolution, error) {
	logger := m.logger.With("student", s.StudentID, "submission", s.UUID)

	ids, err := m.find(ctx, s)
	if err != nil {
		return Resolution{}, err
	}

	var res Resolution
	switch {
	case len(ids) == 0:
		res.ContainerID, err = m.create(ctx, s, img)
		if err != nil {
			return Resolution{}, err
		}
		res.Created = true
		logger.Debug("created container", "container", short(res.ContainerID))
	case rebuild:
		logger.Info("removing old container", "container", short(ids[0]))
		if err := m.rt.RemoveContainer(ctx, ids[0], true); err != nil {
			return Resolution{}, fmt.Errorf("failed to remove container %s: %w", short(ids[0]), err)
		}
		res.ContainerID, err = m.create(ctx, s, img)
		if err != nil {
			return Resolution{}, err
		}
		res.Created = true
		logger.Debug("recreated container", "container", short(res.ContainerID))
	default:
		res.ContainerID = ids[0]
		logger.Debug("reusing container", "container", short(res.ContainerID))
	}

	info, err := m.rt.InspectContainer(ctx, res.ContainerID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to inspect container %s: %w", short(res.ContainerID), err)
	}
	res.ImageID = info.ImageID

	current, err := img.CurrentImageID(ctx)
	if err != nil {
		logger.Warn("could not determine the current image", "image", img.Tag(), "error", err)
		return res, nil
	}
	if current != info.ImageID {
		res.Stale = true
		logger.Warn("container is based on an old image, you may want to rebuild it",
			"container_image", short(info.ImageID), "current_image", short(current))
	}
	return res, nil
}

// State reports whether the submission has a container and whether it is
// based on the current image.
func (m *Manager) State(ctx context.Context, s *subm.Submission, img Image) (State, error) {
	ids, err := m.find(ctx, s)
	if err != nil {
		return Absent, err
	}
	if len(ids) == 0 {
		return Absent, nil
	}
	info, err := m.rt.InspectContainer(ctx, ids[0])
	if err != nil {
		return Absent, fmt.Errorf("failed to inspect container %s: %w", short(ids[0]), err)
	}
	current, err := img.CurrentImageID(ctx)
	if err != nil {
		return Present, err
	}
	if current != info.ImageID {
		return Stale, nil
	}
	return Present, nil
}

func (m *Manager) find(ctx context.Context, s *subm.Submission) ([]string, error) {
	ids, err := m.rt.FindContainers(ctx, s.LabelFilter())
	if err != nil {
		return nil, fmt.Errorf("failed to list containers for %s: %w", s.ID, err)
	}
	if len(ids) > 1 {
		return nil, &DuplicateError{UUID: s.UUID, IDs: ids}
	}
	return ids, nil
}

func (m *Manager) create(ctx context.Context, s *subm.Submission, img Image) (string, error) {
	spec := runtime.ContainerSpec{
		Image:  img.Tag(),
		Name:   s.ID.String(),
		Labels: s.Labels(),
	}
	id, err := m.rt.CreateContainer(ctx, spec)
	if errors.Is(err, runtime.ErrNoSuchImage) {
		return "", fmt.Errorf("%w: %w, did you build the assignment?", ErrImageNotBuilt, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create container for %s: %w", s.ID, err)
	}
	return id, nil
}

func short(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
