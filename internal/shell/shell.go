// Package shell is the line-oriented terminal front end of a screening session.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/shlex"

	"github.com/joseph-ayodele/trial-screener/internal/export"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/ocr"
	"github.com/joseph-ayodele/trial-screener/internal/repository"
	"github.com/joseph-ayodele/trial-screener/internal/screening"
	"github.com/joseph-ayodele/trial-screener/internal/utils"
)

const prompt = "screener> "

// errQuit ends the read loop.
var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, s *Shell, args []string) error
}

// Shell drives one Controller from text commands.
type Shell struct {
	ctrl       *screening.Controller
	runs       repository.RunRepository
	exporter   *export.Service
	countPages func(string) (int, error)
	out        io.Writer
	logger     *slog.Logger
	commands   map[string]command
	order      []string
}

type Option func(*Shell)

// WithRuns enables save, history and export.
func WithRuns(runs repository.RunRepository) Option {
	return func(s *Shell) { s.runs = runs }
}

func WithPageCounter(fn func(string) (int, error)) Option {
	return func(s *Shell) { s.countPages = fn }
}

func New(ctrl *screening.Controller, out io.Writer, logger *slog.Logger, opts ...Option) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shell{ctrl: ctrl, out: out, logger: logger, countPages: ocr.CountPages}
	for _, o := range opts {
		o(s)
	}
	if s.runs != nil {
		s.exporter = export.NewService(s.runs, logger)
	}
	s.register()
	return s
}

func (s *Shell) register() {
	s.commands = map[string]command{}
	add := func(name, usage, help string, run func(context.Context, *Shell, []string) error) {
		s.commands[name] = command{usage: usage, help: help, run: run}
		s.order = append(s.order, name)
	}
	add("criteria", "criteria", "show the criteria text", showCriteria)
	add("case", "case", "show the case text", showCase)
	add("result", "result", "show the latest verdict", showResult)
	add("pages", "pages <pdf>", "print the page count of a PDF", pageCount)
	add("load-criteria", "load-criteria <pdf> [pages]", "convert a protocol, optionally only pages like 3-5", loadCriteria)
	add("extract", "extract", "keep only the inclusion and exclusion criteria", extractCriteria)
	add("load-case", "load-case <pdf>", "convert a patient case", loadCase)
	add("organize", "organize", "structure the case text", organizeCase)
	add("classify", "classify", "check the case against the criteria", classifyCase)
	add("edit-criteria", "edit-criteria <file>", "replace the criteria text with a file's contents", editCriteria)
	add("edit-case", "edit-case <file>", "replace the case text with a file's contents", editCase)
	add("reset", "reset", "clear everything", reset)
	add("status", "status", "print the status line", status)
	add("save", "save", "store the current verdict", save)
	add("history", "history [n]", "list stored verdicts", history)
	add("export", "export <xlsx>", "write stored verdicts to a workbook", exportRuns)
	add("help", "help", "list commands", help)
	add("quit", "quit", "leave the shell", func(context.Context, *Shell, []string) error { return errQuit })
}

// Run reads commands from in until EOF, quit, or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	s.printf("%s", prompt)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.Exec(ctx, sc.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			s.printf("error: %v\n", err)
		}
		s.printf("%s", prompt)
	}
	s.printf("\n")
	return sc.Err()
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := s.commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
	s.logger.Debug("shell.exec", "command", args[0], "args", len(args)-1)
	return cmd.run(ctx, s, args[1:])
}

func (s *Shell) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Shell) printStatus() {
	s.printf("[%s]\n", s.ctrl.Status())
}

func (s *Shell) requireRuns() error {
	if s.runs == nil {
		return errors.New("no run store configured, set STORE_DSN")
	}
	return nil
}

func showCriteria(_ context.Context, s *Shell, _ []string) error {
	s.printf("%s\n", s.ctrl.Snapshot().Criteria)
	return nil
}

func showCase(_ context.Context, s *Shell, _ []string) error {
	s.printf("%s\n", s.ctrl.Snapshot().Case)
	return nil
}

func showResult(_ context.Context, s *Shell, _ []string) error {
	s.printf("%s\n", s.ctrl.Snapshot().Result.Display())
	return nil
}

func pageCount(_ context.Context, s *Shell, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: pages <pdf>")
	}
	n, err := s.countPages(args[0])
	if err != nil {
		return err
	}
	s.printf("%d\n", n)
	return nil
}

func loadCriteria(ctx context.Context, s *Shell, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: load-criteria <pdf> [pages]")
	}
	var pages *extract.PageRange
	if len(args) == 2 {
		sel, err := extract.ParsePageSelection(args[1])
		if err != nil {
			return err
		}
		r, ok := extract.RangeFromSelection(sel)
		if !ok {
			return errors.New("no pages selected")
		}
		pages = &r
	}
	err := s.ctrl.LoadCriteriaDocument(ctx, args[0], pages)
	s.printStatus()
	return quiet(err)
}

func loadCase(ctx context.Context, s *Shell, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: load-case <pdf>")
	}
	err := s.ctrl.LoadCaseDocument(ctx, args[0])
	s.printStatus()
	return quiet(err)
}

func extractCriteria(ctx context.Context, s *Shell, _ []string) error {
	err := s.ctrl.ExtractCriteria(ctx)
	s.printStatus()
	return quiet(err)
}

func organizeCase(ctx context.Context, s *Shell, _ []string) error {
	err := s.ctrl.OrganizeCase(ctx)
	s.printStatus()
	return quiet(err)
}

func classifyCase(ctx context.Context, s *Shell, _ []string) error {
	res, err := s.ctrl.ClassifyCase(ctx)
	if res != nil {
		s.printf("%s\n", res.Display())
	}
	s.printStatus()
	return quiet(err)
}

func editCriteria(_ context.Context, s *Shell, args []string) error {
	text, err := readArg(args, "edit-criteria <file>")
	if err != nil {
		return err
	}
	return s.ctrl.SetCriteria(text)
}

func editCase(_ context.Context, s *Shell, args []string) error {
	text, err := readArg(args, "edit-case <file>")
	if err != nil {
		return err
	}
	return s.ctrl.SetCase(text)
}

func readArg(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: " + usage)
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func reset(_ context.Context, s *Shell, _ []string) error {
	if err := s.ctrl.Reset(); err != nil {
		return err
	}
	s.printStatus()
	return nil
}

func status(_ context.Context, s *Shell, _ []string) error {
	s.printStatus()
	return nil
}

func save(ctx context.Context, s *Shell, _ []string) error {
	if err := s.requireRuns(); err != nil {
		return err
	}
	run, err := utils.RunFromSession(s.ctrl.Snapshot())
	if err != nil {
		return err
	}
	saved, err := s.runs.Save(ctx, run)
	if err != nil {
		return err
	}
	s.printf("saved %s\n", saved.ID)
	return nil
}

func history(ctx context.Context, s *Shell, args []string) error {
	if err := s.requireRuns(); err != nil {
		return err
	}
	limit := 20
	if len(args) == 1 {
		if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil || limit < 1 {
			return errors.New("usage: history [n]")
		}
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		s.printf("no saved runs\n")
		return nil
	}
	for _, r := range runs {
		verdict := "ok"
		if !r.Success {
			verdict = "failed"
		}
		s.printf("%s  %s  %-6s  %s | %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.ID, verdict, r.CriteriaPath, r.CasePath)
	}
	return nil
}

func exportRuns(ctx context.Context, s *Shell, args []string) error {
	if err := s.requireRuns(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: export <xlsx>")
	}
	data, err := s.exporter.ExportRunsXLSX(ctx, 0)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return err
	}
	s.printf("wrote %s (%d bytes)\n", args[0], len(data))
	return nil
}

func help(_ context.Context, s *Shell, _ []string) error {
	for _, name := range s.order {
		c := s.commands[name]
		s.printf("  %-28s %s\n", c.usage, c.help)
	}
	return nil
}

// quiet drops errors the controller already reported on the status line.
// Only a busy rejection leaves the status untouched.
func quiet(err error) error {
	if errors.Is(err, screening.ErrBusy) {
		return err
	}
	return nil
}

// splitArgs tokenizes a command line with POSIX shell quoting. Quotes and
// backslash escapes keep paths with spaces together, and a leading # makes
// the rest of the line a comment.
func splitArgs(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parse command line: %w", err)
	}
	return args, nil
}
