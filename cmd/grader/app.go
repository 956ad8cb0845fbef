package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/console"
	"github.com/programme-lv/grader/internal/docker"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/gatherer/natsgath"
	"github.com/programme-lv/grader/internal/gatherer/sqsgath"
	"github.com/programme-lv/grader/internal/gatherer/termgath"
)

type app struct {
	env    *config.EnvConfig
	home   string
	logger *slog.Logger
}

func (a *app) course() (*config.Course, error) {
	c, err := config.LoadCourse(a.home)
	if err != nil {
		return nil, fmt.Errorf("%w (run \"grader init\" to create a course in %s)", err, a.home)
	}
	return c, nil
}

func (a *app) docker() *docker.Client {
	return docker.New(a.env.DockerBin, a.logger)
}

func (a *app) assignment(name string) (*assignment.Assignment, *config.Course, error) {
	c, err := a.course()
	if err != nil {
		return nil, nil, err
	}
	asg, err := assignment.Open(a.home, name, c, a.docker(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	return asg, c, nil
}

// gatherers builds the event sinks configured in the environment. The
// returned cleanup closes any connection opened for them.
func (a *app) gatherers(ctx context.Context, con *console.Console, batchUuid string, extra ...gatherer.Gatherer) (gatherer.Gatherer, func(), error) {
	gs := []gatherer.Gatherer{termgath.New(con)}
	cleanup := func() {}

	if a.env.NatsURL != "" {
		nc, err := natsgath.Connect(a.env.NatsURL)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			if err := nc.Drain(); err != nil && err != nats.ErrConnectionClosed {
				a.logger.Warn("failed to drain nats connection", "error", err)
			}
		}
		gs = append(gs, natsgath.New(nc, batchUuid, a.env.NatsSubject, a.logger))
	}
	if a.env.SqsURL != "" {
		client, err := sqsgath.NewClient(ctx)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		gs = append(gs, sqsgath.New(client, batchUuid, a.env.SqsURL, a.logger))
	}
	gs = append(gs, extra...)
	return gatherer.Multi(gs...), cleanup, nil
}
