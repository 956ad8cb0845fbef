package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"

	pretty_table "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/container"
	"github.com/programme-lv/grader/internal/gatherer/natsgath"
	"github.com/urfave/cli/v3"
)

type health int

const (
	okay health = iota
	warn
	fail
)

func (h health) String() string {
	switch h {
	case okay:
		return "OKAY"
	case warn:
		return "WARN"
	}
	return "ERROR"
}

type feedbackRow struct {
	unit    string
	health  health
	message string
}

func (a *app) healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check docker, the course configuration and assignment images",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			feedback := a.checkHealth(ctx)
			outputFeedback(feedback)
			for _, row := range feedback {
				if row.health == fail {
					return errors.New("grader is not healthy")
				}
			}
			return nil
		},
	}
}

func (a *app) checkHealth(ctx context.Context) []feedbackRow {
	var feedback []feedbackRow

	dk := a.docker()
	dockerRow := feedbackRow{unit: "Docker", health: okay, message: a.env.DockerBin}
	if err := dk.Ping(ctx); err != nil {
		dockerRow.health, dockerRow.message = fail, err.Error()
	}
	feedback = append(feedback, dockerRow)

	if _, err := exec.LookPath("git"); err != nil {
		feedback = append(feedback, feedbackRow{"Git", warn, "git not found, repo imports will fail"})
	} else {
		feedback = append(feedback, feedbackRow{"Git", okay, ""})
	}

	if a.env.NatsURL != "" {
		nc, err := natsgath.Connect(a.env.NatsURL)
		if err != nil {
			feedback = append(feedback, feedbackRow{"NATS", fail, err.Error()})
		} else {
			nc.Close()
			feedback = append(feedback, feedbackRow{"NATS", okay, a.env.NatsURL})
		}
	}

	c, err := a.course()
	if err != nil {
		return append(feedback, feedbackRow{"Course", fail, err.Error()})
	}
	feedback = append(feedback, feedbackRow{"Course", okay, c.CourseID + " " + c.CourseName})

	if dockerRow.health == fail {
		return feedback
	}
	entries, err := os.ReadDir(config.AssignmentsDir(a.home))
	if err != nil {
		return append(feedback, feedbackRow{"Assignments", warn, err.Error()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		row := feedbackRow{unit: "Assignment " + e.Name(), health: okay}
		asg, err := assignment.Open(a.home, e.Name(), c, dk, a.logger)
		if err != nil {
			row.health, row.message = fail, err.Error()
			feedback = append(feedback, row)
			continue
		}
		id, err := asg.CurrentImageID(ctx)
		switch {
		case errors.Is(err, container.ErrImageNotBuilt):
			row.health, row.message = warn, "image "+asg.Tag()+" is not built"
		case err != nil:
			row.health, row.message = fail, err.Error()
		default:
			row.message = asg.Tag() + " " + id
		}
		feedback = append(feedback, row)
	}
	return feedback
}

func outputFeedback(feedback []feedbackRow) {
	t := pretty_table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(pretty_table.Row{"Unit", "Health", "Message"})
	for _, row := range feedback {
		t.AppendRow(pretty_table.Row{row.unit, row.health.String(), row.message})
	}
	t.SetStyle(pretty_table.StyleColoredDark)
	textColor := text.Transformer(func(s interface{}) string {
		switch s.(string) {
		case "OKAY":
			return text.FgHiGreen.Sprint(s)
		case "WARN":
			return text.FgHiYellow.Sprint(s)
		case "ERROR":
			return text.FgHiRed.Sprint(s)
		}
		return ""
	})
	t.SetColumnConfigs([]pretty_table.ColumnConfig{
		{
			Name:        "Health",
			Transformer: textColor,
			Align:       text.AlignCenter,
		},
	})
	t.Render()
}
