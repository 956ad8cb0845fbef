package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	pretty_table "github.com/jedib0t/go-pretty/v6/table"
	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/console"
	"github.com/programme-lv/grader/internal/container"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/gatherer/respbuilder"
	"github.com/programme-lv/grader/internal/grading"
	"github.com/programme-lv/grader/internal/importer"
	"github.com/programme-lv/grader/internal/results"
	"github.com/programme-lv/grader/internal/roster"
	"github.com/programme-lv/grader/internal/subm"
	"github.com/urfave/cli/v3"
)

func (a *app) initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create the course configuration in the grader home",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "course-id", Required: true},
			&cli.StringFlag{Name: "course-name", Required: true},
			&cli.StringSliceFlag{Name: "student", Usage: `roster entry as "id:Full Name", repeatable`},
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing configuration"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := filepath.Join(a.home, config.FileName)
			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}

			c := &config.Course{
				CourseID:   cmd.String("course-id"),
				CourseName: cmd.String("course-name"),
			}
			for _, entry := range cmd.StringSlice("student") {
				id, name, _ := strings.Cut(entry, ":")
				c.Roster = append(c.Roster, roster.Student{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
			}

			if err := os.MkdirAll(config.AssignmentsDir(a.home), 0755); err != nil {
				return fmt.Errorf("failed to create grader home: %w", err)
			}
			if err := config.WriteCourse(a.home, c); err != nil {
				return err
			}
			a.logger.Info("created course", "path", path, "students", len(c.Roster))
			return nil
		},
	}
}

func (a *app) newCommand() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "create an assignment",
		ArgsUsage: "<assignment>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "grade-command", Usage: "command run inside the container, the submission directory is appended"},
			&cli.StringFlag{Name: "exec-user", Usage: "user the grade command runs as"},
			&cli.StringFlag{Name: "exec-timeout", Usage: "upper bound for the grade command, e.g. 5m"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one assignment name")
			}
			name := cmd.Args().First()
			c, err := a.course()
			if err != nil {
				return err
			}

			settings := config.Assignment{
				GradeCommand: cmd.String("grade-command"),
				ExecUser:     cmd.String("exec-user"),
				ExecTimeout:  cmd.String("exec-timeout"),
			}
			if settings != (config.Assignment{}) {
				if c.Assignments == nil {
					c.Assignments = make(map[string]config.Assignment)
				}
				c.Assignments[name] = settings
				if err := config.WriteCourse(a.home, c); err != nil {
					return err
				}
			}

			asg, err := assignment.Create(a.home, name, c, a.docker(), a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("created assignment", "path", asg.Path, "image", asg.Tag())
			a.logger.Info("build the grading image before grading", "command", fmt.Sprintf("docker build -t %s <dir>", asg.Tag()))
			return nil
		},
	}
}

func (a *app) importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import submissions into an assignment",
		ArgsUsage: "<assignment> <source>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Value: importer.KindSingle.String(),
				Usage: "single, multiple, repo or blackboard",
			},
			&cli.StringFlag{
				Name:  "pattern",
				Value: subm.DefaultPattern,
				Usage: `regular expression with an "id" group extracting the student id from the source name`,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("expected an assignment and a source")
			}
			kind, err := importer.ParseKind(cmd.String("kind"))
			if err != nil {
				return err
			}
			asg, c, err := a.assignment(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			r, err := c.StudentRoster()
			if err != nil {
				return err
			}

			im := importer.New(r, a.logger)
			subs, err := im.Import(ctx, kind, asg, cmd.Args().Get(1), cmd.String("pattern"))
			if err != nil {
				return err
			}
			con := console.New(nil)
			for _, s := range subs {
				con.Okf("imported %s", s.ID)
			}
			a.logger.Info("import finished", "assignment", asg.Name, "submissions", len(subs))
			return nil
		},
	}
}

func (a *app) gradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "grade",
		Usage:     "grade submissions of an assignment",
		ArgsUsage: "<assignment> [student]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "rebuild", Usage: "recreate the grading containers"},
			&cli.BoolFlag{Name: "suppress-output", Usage: "do not print grading output"},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: 1, Usage: "how many submissions to grade concurrently"},
			&cli.DurationFlag{Name: "timeout", Usage: "upper bound for each grade command, overrides exec_timeout"},
			&cli.BoolFlag{Name: "json", Usage: "print a JSON summary of the batch to stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if n := cmd.Args().Len(); n < 1 || n > 2 {
				return errors.New("expected an assignment and an optional student id")
			}
			asg, _, err := a.assignment(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			byStudent, err := asg.SubmissionsByStudent()
			if err != nil {
				return err
			}
			if sid := cmd.Args().Get(1); sid != "" {
				subs, ok := byStudent[sid]
				if !ok {
					return fmt.Errorf("cannot find submissions of student %s", sid)
				}
				byStudent = map[string][]*subm.Submission{sid: subs}
			}

			dk := a.docker()
			if err := dk.Ping(ctx); err != nil {
				return fmt.Errorf("docker is not available: %w", err)
			}

			opts := grading.Options{
				Rebuild:        cmd.Bool("rebuild"),
				SuppressOutput: cmd.Bool("suppress-output"),
				Timeout:        cmd.Duration("timeout"),
			}
			con := console.New(nil)
			batchUuid := uuid.NewString()
			var extra []gatherer.Gatherer
			var rb *respbuilder.Builder
			if cmd.Bool("json") {
				con = console.New(os.Stderr)
				opts.SuppressOutput = true
				rb = respbuilder.New(batchUuid)
				extra = append(extra, rb)
			}
			g, cleanup, err := a.gatherers(ctx, con, batchUuid, extra...)
			if err != nil {
				return err
			}
			defer cleanup()

			o, err := grading.New(asg, grading.Config{Runtime: dk, Gatherer: g, Console: con, Logger: a.logger})
			if err != nil {
				return err
			}
			report := o.GradeBatch(ctx, byStudent, cmd.Int("jobs"), opts)

			if rb != nil {
				b, err := json.MarshalIndent(rb.Response(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d submissions were not graded",
					len(report.Failed), len(report.Failed)+len(report.Graded))
			}
			return nil
		},
	}
}

func (a *app) listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "list the submissions of an assignment",
		ArgsUsage: "<assignment>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "containers", Usage: "show the state of each grading container"},
			&cli.BoolFlag{Name: "full", Usage: "show full submission uuids"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one assignment name")
			}
			asg, c, err := a.assignment(cmd.Args().First())
			if err != nil {
				return err
			}
			r, err := c.StudentRoster()
			if err != nil {
				return err
			}
			byStudent, err := asg.SubmissionsByStudent()
			if err != nil {
				return err
			}
			rec := results.NewRecorder(asg.ResultsDir(), a.logger)
			var mgr *container.Manager
			if cmd.Bool("containers") {
				mgr = container.NewManager(a.docker(), a.logger)
			}

			t := pretty_table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			header := pretty_table.Row{"Student", "Name", "Submission", "Imported", "Last change", "Results"}
			if mgr != nil {
				header = append(header, "Container")
			}
			t.AppendHeader(header)

			for _, sid := range sortedKeys(byStudent) {
				res, err := rec.For(sid)
				if err != nil {
					return err
				}
				for _, s := range byStudent[sid] {
					row := pretty_table.Row{
						sid,
						r.NameOf(sid),
						shorten(s.UUID, cmd.Bool("full")),
						formatTime(s.ImportTime()),
						formatTime(s.LatestMtime()),
						len(res),
					}
					if mgr != nil {
						state, err := mgr.State(ctx, s, asg)
						if err != nil {
							row = append(row, "error: "+err.Error())
						} else {
							row = append(row, state.String())
						}
					}
					t.AppendRow(row)
				}
			}
			t.SetStyle(pretty_table.StyleLight)
			t.Render()
			return nil
		},
	}
}

func (a *app) resultsCommand() *cli.Command {
	return &cli.Command{
		Name:      "results",
		Usage:     "list the grading results of a student",
		ArgsUsage: "<assignment> <student>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "latest", Usage: "print the newest result instead of listing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("expected an assignment and a student id")
			}
			asg, _, err := a.assignment(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			sid := cmd.Args().Get(1)
			rec := results.NewRecorder(asg.ResultsDir(), a.logger)

			if cmd.Bool("latest") {
				res, ok, err := rec.Latest(sid)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("student %s has no results for %s", sid, asg.Name)
				}
				b, err := os.ReadFile(res.Path)
				if err != nil {
					return err
				}
				console.New(nil).Block(filepath.Base(res.Path), string(b))
				return nil
			}

			all, err := rec.For(sid)
			if err != nil {
				return err
			}
			t := pretty_table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(pretty_table.Row{"#", "File", "Format", "Recorded"})
			for _, res := range all {
				var recorded string
				if info, err := os.Stat(res.Path); err == nil {
					recorded = info.ModTime().Format(time.DateTime)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				t.AppendRow(pretty_table.Row{res.Counter, filepath.Base(res.Path), res.Ext, recorded})
			}
			t.SetStyle(pretty_table.StyleLight)
			t.Render()
			return nil
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shorten(s string, full bool) string {
	if full || len(s) <= 8 {
		return s
	}
	return s[:8] + "..."
}

func formatTime(t time.Time, err error) string {
	if err != nil {
		return "?"
	}
	return t.Local().Format(time.DateTime)
}
