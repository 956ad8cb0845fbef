package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/console"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/gatherer/natsgath"
	"github.com/programme-lv/grader/internal/gatherer/respbuilder"
	"github.com/programme-lv/grader/internal/grading"
	"github.com/programme-lv/grader/internal/runtime"
	"github.com/programme-lv/grader/internal/subm"
	"github.com/urfave/cli/v3"
)

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "grade requests received over NATS and reply with a batch summary",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: a.env.NatsRequestSubject, Usage: "subject to receive api.GradeReq messages on"},
			&cli.StringFlag{Name: "queue", Value: "graders", Usage: "queue group shared by serving graders"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if a.env.NatsURL == "" {
				return errors.New("GRADER_NATS_URL is not set")
			}
			nc, err := natsgath.Connect(a.env.NatsURL)
			if err != nil {
				return err
			}
			defer nc.Drain()

			dk := a.docker()
			if err := dk.Ping(ctx); err != nil {
				return fmt.Errorf("docker is not available: %w", err)
			}

			reqs := make(chan *nats.Msg, 64)
			sub, err := nc.ChanQueueSubscribe(cmd.String("subject"), cmd.String("queue"), reqs)
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}
			defer sub.Unsubscribe()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.logger.Info("waiting for grade requests", "subject", cmd.String("subject"), "queue", cmd.String("queue"))
			for {
				select {
				case <-ctx.Done():
					a.logger.Info("shutting down")
					return nil
				case msg := <-reqs:
					a.serveRequest(ctx, nc, dk, msg)
				}
			}
		},
	}
}

func (a *app) serveRequest(ctx context.Context, nc *nats.Conn, rt runtime.Runtime, msg *nats.Msg) {
	batchUuid := uuid.NewString()
	rb := respbuilder.New(batchUuid)

	res, err := a.grade(ctx, nc, rt, batchUuid, rb, msg.Data)
	if err != nil {
		a.logger.Error("failed to serve grade request", "batch", batchUuid, "error", err)
		errMsg := err.Error()
		res = rb.Response()
		res.ErrorMessage = &errMsg
	}
	if msg.Reply == "" {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		a.logger.Error("failed to marshal batch result", "error", err)
		return
	}
	if err := msg.Respond(b); err != nil {
		a.logger.Error("failed to respond", "error", err)
	}
}

func (a *app) grade(ctx context.Context, nc *nats.Conn, rt runtime.Runtime, batchUuid string, rb *respbuilder.Builder, data []byte) (api.BatchResult, error) {
	var req api.GradeReq
	if err := json.Unmarshal(data, &req); err != nil {
		return api.BatchResult{}, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	asg, _, err := a.assignment(req.Assignment)
	if err != nil {
		return api.BatchResult{}, err
	}
	byStudent, err := asg.SubmissionsByStudent()
	if err != nil {
		return api.BatchResult{}, err
	}
	if req.StudentID != "" {
		subs, ok := byStudent[req.StudentID]
		if !ok {
			return api.BatchResult{}, fmt.Errorf("cannot find submissions of student %s", req.StudentID)
		}
		byStudent = map[string][]*subm.Submission{req.StudentID: subs}
	}

	g := gatherer.Multi(natsgath.New(nc, batchUuid, a.env.NatsSubject, a.logger), rb)
	o, err := grading.New(asg, grading.Config{
		Runtime:  rt,
		Gatherer: g,
		Console:  console.New(io.Discard),
		Logger:   a.logger.With("batch", batchUuid),
	})
	if err != nil {
		return api.BatchResult{}, err
	}
	o.GradeBatch(ctx, byStudent, req.Workers, grading.Options{Rebuild: req.Rebuild, SuppressOutput: true})
	return rb.Response(), nil
}
