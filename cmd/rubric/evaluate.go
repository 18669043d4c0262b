package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/worker"
)

type evaluateFlags struct {
	schemes     []string
	contextType string
	file        string
	model       string
	viaTemporal bool
	compact     bool
}

func newEvaluateCmd(a *app) *cobra.Command {
	var f evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate [text]",
		Short: "Evaluate one text and print the outcome as JSON",
		Long: `Evaluates a text against the given schemes. The text comes from the
argument, from --file, or from stdin when neither is given.

  rubric evaluate --schemes strafrecht_gate,sachrichtigkeit_old "Der Text..."
  rubric evaluate --schemes overall_quality --file artikel.txt --temporal`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), f.file, args)
			if err != nil {
				return err
			}
			req := domain.NewEvaluationRequest(text, f.schemes, domain.ContextType(f.contextType))
			req.Model = f.model
			if err := req.ValidateLimits(); err != nil {
				return err
			}

			var result any
			if f.viaTemporal {
				result, err = a.submit(cmd, req)
			} else {
				result, err = a.evaluateLocal(cmd, req)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !f.compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(result)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.schemes, "schemes", nil, "comma-separated scheme IDs")
	fl.StringVar(&f.contextType, "context", string(domain.ContextBoth), "gate context: content, platform or both")
	fl.StringVar(&f.file, "file", "", "read the text from this file")
	fl.StringVar(&f.model, "model", "", "model override")
	fl.BoolVar(&f.viaTemporal, "temporal", false, "run through the Temporal workflow instead of in process")
	fl.BoolVar(&f.compact, "compact", false, "print single-line JSON")
	_ = cmd.MarkFlagRequired("schemes")
	return cmd
}

func (a *app) evaluateLocal(cmd *cobra.Command, req domain.EvaluationRequest) (*domain.EvaluationOutcome, error) {
	engine, cleanup, err := a.buildEngine(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if unknown := engine.Catalog().Unknown(req.SchemeIDs); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchemeNotFound, strings.Join(unknown, ", "))
	}
	return engine.Evaluate(cmd.Context(), req)
}

func (a *app) submit(cmd *cobra.Command, req domain.EvaluationRequest) (any, error) {
	c, err := worker.Dial(a.cfg.Temporal, a.logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return worker.Submit(cmd.Context(), c, a.cfg.Temporal.TaskQueue, req)
}

func readText(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("pass the text as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
}
