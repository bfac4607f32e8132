package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/solforge/internal/engine"
	"github.com/roach88/solforge/internal/ir"
)

// RunRequest is one input line of the run command.
type RunRequest struct {
	ID        string      `json:"id,omitempty"`
	Operation string      `json:"operation"`
	Caller    string      `json:"caller"`
	Args      ir.IRObject `json:"args,omitempty"`
}

// RunResponse is one output line of the run command.
type RunResponse struct {
	Line    int          `json:"line"`
	Status  string       `json:"status"` // "ok", "rejected" or "error"
	Request *RequestView `json:"request,omitempty"`
	Error   *CLIError    `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve requests read from stdin",
		Long: `Start the single-writer engine loop and feed it requests, one JSON
object per line on stdin. One JSON response line is written per request.
The loop stops at end of input or on SIGINT/SIGTERM.

Request lines look like:
  {"operation":"accrue_fee","caller":"<id>","args":{"amount":"1500000"}}

Example:
  solforge run --db ./solforge.db < requests.jsonl`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(rootOpts, cmd)
		},
	}
	return cmd
}

func runEngine(opts *RootOptions, cmd *cobra.Command) error {
	logger := opts.logger()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sess, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- sess.engine.Run(ctx)
	}()

	served, failed, readErr := serveLines(ctx, sess.engine, cmd.InOrStdin(), cmd.OutOrStdout())
	sess.engine.Stop()
	loopErr := <-loopDone

	logger.Info("engine stopped", "served", served, "failed", failed)
	if readErr != nil {
		return WrapExitError(ExitCommandError, "failed to read requests", readErr)
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", loopErr)
	}
	return nil
}

// serveLines submits each input line and writes its response. It returns
// the number of requests served and of those not successful.
func serveLines(ctx context.Context, eng *engine.Engine, r io.Reader, w io.Writer) (int, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	served, failed := 0, 0
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		resp := serveLine(ctx, eng, line, scanner.Bytes())
		served++
		if resp.Status != "ok" {
			failed++
		}
		if err := enc.Encode(resp); err != nil {
			return served, failed, fmt.Errorf("write response: %w", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return served, failed, scanner.Err()
}

func serveLine(ctx context.Context, eng *engine.Engine, line int, data []byte) RunResponse {
	resp := RunResponse{Line: line}
	fail := func(code string, err error) RunResponse {
		resp.Status = "error"
		resp.Error = &CLIError{Code: code, Message: err.Error()}
		return resp
	}

	var in RunRequest
	if err := json.Unmarshal(data, &in); err != nil {
		return fail(CodeInvalidArgs, fmt.Errorf("malformed request: %w", err))
	}
	caller, err := ParseIdentity(in.Caller)
	if err != nil {
		return fail(CodeInvalidArgs, fmt.Errorf("caller: %w", err))
	}
	res, err := eng.Submit(ctx, engine.Request{
		ID:        in.ID,
		Operation: in.Operation,
		Caller:    caller,
		Args:      in.Args,
	})
	if err != nil {
		code := CodeCommand
		if engine.IsInvalidArgs(err) || engine.IsUnknownOperation(err) {
			code = CodeInvalidArgs
		}
		return fail(code, err)
	}

	view := newRequestView(res)
	resp.Request = &view
	resp.Status = "ok"
	if res.Err != nil {
		resp.Status = "rejected"
		resp.Error = &CLIError{Code: res.Completion.OutputCase, Message: res.Err.Error()}
	}
	return resp
}
