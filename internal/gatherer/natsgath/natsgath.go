// Package natsgath publishes grading events as JSON to a NATS subject.
package natsgath

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/subm"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type natsGatherer struct {
	pub       Publisher
	subject   string
	batchUuid string
	started   time.Time
	logger    *slog.Logger
}

var _ gatherer.Gatherer = (*natsGatherer)(nil)

// New creates a gatherer that streams events of one batch to subject.
func New(pub Publisher, batchUuid string, subject string, logger *slog.Logger) *natsGatherer {
	if logger == nil {
		logger = slog.Default()
	}
	return &natsGatherer{
		pub:       pub,
		subject:   subject,
		batchUuid: batchUuid,
		logger:    logger,
	}
}

// Connect dials the NATS server at url.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("grader"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

func (g *natsGatherer) StartBatch(assignment string, submissions int, workers int) {
	g.started = time.Now()
	g.send(api.NewStartBatch(g.batchUuid, assignment, submissions, workers))
}

func (g *natsGatherer) StartGrade(s *subm.Submission) {
	g.send(api.NewStartGrade(g.batchUuid, gatherer.Submission(s)))
}

func (g *natsGatherer) FinishGrade(s *subm.Submission, resultPath string, output string, stale bool) {
	g.send(api.NewFinishGrade(g.batchUuid, gatherer.Submission(s), resultPath, output, stale))
}

func (g *natsGatherer) FailGrade(s *subm.Submission, err error) {
	g.send(api.NewFailGrade(g.batchUuid, gatherer.Submission(s), err.Error()))
}

func (g *natsGatherer) FinishBatch(graded int, failed int) {
	g.send(api.NewFinishBatch(g.batchUuid, graded, failed, time.Since(g.started)))
}

// send never fails the grading run; publish errors are only logged.
func (g *natsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("failed to marshal message", "error", err)
		return
	}
	if err := g.pub.Publish(g.subject, b); err != nil {
		g.logger.Error("failed to publish message to nats", "subject", g.subject, "error", err)
	}
}
