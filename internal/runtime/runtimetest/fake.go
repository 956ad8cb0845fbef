// Package runtimetest provides an in-memory runtime.Runtime for tests.
package runtimetest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/programme-lv/grader/internal/runtime"
)

// Container is the fake's record of a created container.
type Container struct {
	ID        string
	Name      string
	Image     string
	ImageID   string
	Labels    map[string]string
	Running   bool
	CreatedAt time.Time
	// Archives maps a destination directory to the uploaded archive bytes.
	Archives map[string][]byte
}

// Call is one exec or archive upload seen by the fake, in arrival order.
type Call struct {
	Op          string
	ContainerID string
	// Exec is set for "exec" calls.
	Exec runtime.ExecSpec
	// Dest is set for "put_archive" calls.
	Dest string
}

// ExecFunc produces the combined output and the error returned by Close for
// commands other than mktemp and chmod.
type ExecFunc func(c *Container, spec runtime.ExecSpec) (string, error)

type Fake struct {
	mu         sync.Mutex
	images     map[string]string
	containers map[string]*Container
	nextID     int
	tmpSeq     int
	calls      []Call

	// OnExec handles grading commands. Nil means empty output.
	OnExec ExecFunc
	// Fail makes the named operation ("create", "start", "stop", "exec",
	// "put_archive", "find", "remove", "inspect") return the error.
	Fail map[string]error
}

func New() *Fake {
	return &Fake{
		images:     make(map[string]string),
		containers: make(map[string]*Container),
		Fail:       make(map[string]error),
	}
}

// SetImage registers (or replaces) the image id for an image reference.
func (f *Fake) SetImage(ref string, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = id
}

// AddContainer inserts a container directly, bypassing CreateContainer.
func (f *Fake) AddContainer(imageID string, labels map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.newContainer("", "", imageID, labels)
	return c.ID
}

func (f *Fake) Container(id string) (Container, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return Container{}, false
	}
	return *c, true
}

// Calls returns the execs and archive uploads made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

func (f *Fake) newContainer(name, image, imageID string, labels map[string]string) *Container {
	f.nextID++
	c := &Container{
		ID:        fmt.Sprintf("c%04d", f.nextID),
		Name:      name,
		Image:     image,
		ImageID:   imageID,
		Labels:    labels,
		CreatedAt: time.Now(),
		Archives:  make(map[string][]byte),
	}
	f.containers[c.ID] = c
	return c
}

func (f *Fake) fail(op string) error {
	if err, ok := f.Fail[op]; ok && err != nil {
		return &runtime.Error{Op: op, Msg: err.Error(), Err: err}
	}
	return nil
}

func (f *Fake) get(op, id string) (*Container, error) {
	c, ok := f.containers[id]
	if !ok {
		return nil, &runtime.Error{Op: op, Msg: "No such container: " + id}
	}
	return c, nil
}

func (f *Fake) FindContainers(ctx context.Context, labelFilter string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("find"); err != nil {
		return nil, err
	}
	key, value, _ := strings.Cut(labelFilter, "=")
	var ids []string
	for id, c := range f.containers {
		if v, ok := c.Labels[key]; ok && v == value {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *Fake) CreateContainer(ctx context.Context, spec runtime.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create"); err != nil {
		return "", err
	}
	imageID, ok := f.images[spec.Image]
	if !ok {
		return "", &runtime.Error{Op: "create", Msg: "No such image: " + spec.Image, Err: runtime.ErrNoSuchImage}
	}
	for _, c := range f.containers {
		if spec.Name != "" && c.Name == spec.Name {
			return "", &runtime.Error{Op: "create", Msg: fmt.Sprintf("Conflict. The container name %q is already in use", spec.Name)}
		}
	}
	labels := make(map[string]string, len(spec.Labels))
	for k, v := range spec.Labels {
		labels[k] = v
	}
	c := f.newContainer(spec.Name, spec.Image, imageID, labels)
	return c.ID, nil
}

func (f *Fake) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("start"); err != nil {
		return err
	}
	c, err := f.get("start", id)
	if err != nil {
		return err
	}
	c.Running = true
	return nil
}

func (f *Fake) StopContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("stop"); err != nil {
		return err
	}
	c, err := f.get("stop", id)
	if err != nil {
		return err
	}
	c.Running = false
	return nil
}

func (f *Fake) RemoveContainer(ctx context.Context, id string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("remove"); err != nil {
		return err
	}
	c, err := f.get("remove", id)
	if err != nil {
		return err
	}
	if c.Running && !force {
		return &runtime.Error{Op: "remove", Msg: "cannot remove a running container " + id}
	}
	delete(f.containers, id)
	return nil
}

func (f *Fake) InspectContainer(ctx context.Context, id string) (runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("inspect"); err != nil {
		return runtime.ContainerInfo{}, err
	}
	c, err := f.get("inspect", id)
	if err != nil {
		return runtime.ContainerInfo{}, err
	}
	return runtime.ContainerInfo{ID: c.ID, ImageID: c.ImageID, CreatedAt: c.CreatedAt}, nil
}

func (f *Fake) InspectImage(ctx context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.images[ref]
	if !ok {
		return "", &runtime.Error{Op: "inspect_image", Msg: "No such image: " + ref, Err: runtime.ErrNoSuchImage}
	}
	return id, nil
}

func (f *Fake) Exec(ctx context.Context, containerID string, spec runtime.ExecSpec) (io.ReadCloser, error) {
	f.mu.Lock()
	if err := f.fail("exec"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	c, err := f.get("exec", containerID)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if !c.Running {
		f.mu.Unlock()
		return nil, &runtime.Error{Op: "exec", Msg: "container " + containerID + " is not running"}
	}
	f.calls = append(f.calls, Call{Op: "exec", ContainerID: containerID, Exec: spec})
	if len(spec.Cmd) > 0 && spec.Cmd[0] == "mktemp" {
		f.tmpSeq++
		out := fmt.Sprintf("/tmp/tmp.%06d\n", f.tmpSeq)
		f.mu.Unlock()
		return &stream{Reader: strings.NewReader(out)}, nil
	}
	snapshot := *c
	f.mu.Unlock()

	if len(spec.Cmd) > 0 && spec.Cmd[0] == "chmod" {
		return &stream{Reader: strings.NewReader("")}, nil
	}
	if f.OnExec == nil {
		return &stream{Reader: strings.NewReader("")}, nil
	}
	out, closeErr := f.OnExec(&snapshot, spec)
	return &stream{Reader: strings.NewReader(out), closeErr: closeErr}, nil
}

func (f *Fake) PutArchive(ctx context.Context, containerID string, destDir string, archive io.Reader) error {
	data, err := io.ReadAll(archive)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("put_archive"); err != nil {
		return err
	}
	c, err := f.get("put_archive", containerID)
	if err != nil {
		return err
	}
	c.Archives[destDir] = data
	f.calls = append(f.calls, Call{Op: "put_archive", ContainerID: containerID, Dest: destDir})
	return nil
}

type stream struct {
	io.Reader
	closeErr error
}

func (s *stream) Close() error {
	return s.closeErr
}

var _ runtime.Runtime = (*Fake)(nil)
