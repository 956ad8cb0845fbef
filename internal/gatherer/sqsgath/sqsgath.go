// Package sqsgath sends grading events as JSON messages to an SQS queue.
package sqsgath

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/subm"
)

const defaultRegion = "eu-central-1"

// SendMessageAPI is the part of *sqs.Client the gatherer uses.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type sqsGatherer struct {
	client    SendMessageAPI
	queueUrl  string
	batchUuid string
	started   time.Time
	logger    *slog.Logger
}

var _ gatherer.Gatherer = (*sqsGatherer)(nil)

func New(client SendMessageAPI, batchUuid string, queueUrl string, logger *slog.Logger) *sqsGatherer {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqsGatherer{
		client:    client,
		queueUrl:  queueUrl,
		batchUuid: batchUuid,
		logger:    logger,
	}
}

// NewClient loads the default AWS configuration. AWS_REGION takes
// precedence over the built-in region.
func NewClient(ctx context.Context) (*sqs.Client, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

func (g *sqsGatherer) StartBatch(assignment string, submissions int, workers int) {
	g.started = time.Now()
	g.send(api.NewStartBatch(g.batchUuid, assignment, submissions, workers))
}

func (g *sqsGatherer) StartGrade(s *subm.Submission) {
	g.send(api.NewStartGrade(g.batchUuid, gatherer.Submission(s)))
}

func (g *sqsGatherer) FinishGrade(s *subm.Submission, resultPath string, output string, stale bool) {
	g.send(api.NewFinishGrade(g.batchUuid, gatherer.Submission(s), resultPath, output, stale))
}

func (g *sqsGatherer) FailGrade(s *subm.Submission, err error) {
	g.send(api.NewFailGrade(g.batchUuid, gatherer.Submission(s), err.Error()))
}

func (g *sqsGatherer) FinishBatch(graded int, failed int) {
	g.send(api.NewFinishBatch(g.batchUuid, graded, failed, time.Since(g.started)))
}

func (g *sqsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("failed to marshal message", "error", err)
		return
	}

	_, err = g.client.SendMessage(context.TODO(), &sqs.SendMessageInput{
		QueueUrl:    aws.String(g.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		g.logger.Error("failed to send message", "queue", g.queueUrl, "error", err)
	}
}
