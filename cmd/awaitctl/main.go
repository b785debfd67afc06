package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/await/internal/client"
	"github.com/xiaot623/gogo/await/internal/domain"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:          "awaitctl",
		Short:        "Command line client for the await service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "await service base URL")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newCancelCommand())
	rootCmd.AddCommand(newEventsCommand())
	rootCmd.AddCommand(newAgentsCommand())
	rootCmd.AddCommand(newWatchCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultServer() string {
	if v := os.Getenv("AWAIT_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func newClient() *client.Client {
	return client.NewClient(serverURL)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newRunCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "run <agent> <text>",
		Short: "Start a run",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			c := newClient()
			run, err := c.StartRun(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if watch {
				return watchRun(c, run.RunID, true, os.Stdin, os.Stdout)
			}
			return printJSON(run)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "follow the run and answer awaits interactively")
	return cmd
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run_id>",
		Short: "Show a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			run, err := newClient().GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}
}

func newListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			runs, err := newClient().ListRuns(ctx, domain.RunStatus(status))
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Printf("%s\t%s\t%s\n", run.RunID, run.AgentName, run.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func newResumeCommand() *cobra.Command {
	var awaitID, submittedBy string
	cmd := &cobra.Command{
		Use:   "resume <run_id> <text>",
		Short: "Answer a run's await",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			run, err := newClient().Resume(ctx, args[0], domain.ResumeRequest{
				AwaitID:     awaitID,
				Message:     domain.NewTextMessage(domain.RoleUser, strings.Join(args[1:], " ")),
				SubmittedBy: submittedBy,
			})
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}
	cmd.Flags().StringVar(&awaitID, "await-id", "", "await being answered")
	cmd.Flags().StringVar(&submittedBy, "by", os.Getenv("USER"), "submitter recorded on the run")
	return cmd
}

func newCancelCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <run_id>",
		Short: "Cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			run, err := newClient().Cancel(ctx, args[0], reason)
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func newEventsCommand() *cobra.Command {
	var afterSeq int64
	var types []string
	var limit int
	cmd := &cobra.Command{
		Use:   "events <run_id>",
		Short: "List a run's events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			events, err := newClient().GetEvents(ctx, args[0], afterSeq, types, limit)
			if err != nil {
				return err
			}
			for _, evt := range events {
				fmt.Printf("%d\t%s\t%s\t%s\n", evt.Seq, evt.Type, evt.Status, string(evt.Payload))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&afterSeq, "after-seq", 0, "only events after this sequence number")
	cmd.Flags().StringSliceVar(&types, "type", nil, "filter by event type")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events")
	return cmd
}

func newAgentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			list, err := newClient().ListAgents(ctx)
			if err != nil {
				return err
			}
			for _, a := range list {
				fmt.Printf("%s\t%s\n", a.Name, a.Description)
			}
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "watch <run_id>",
		Short: "Stream a run's events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRun(newClient(), args[0], interactive, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for answers when the run awaits")
	return cmd
}

type frameResult struct {
	frame client.Frame
	ok    bool
	err   error
}

// watchRun prints a run's events until its stream ends. Frames are read on
// their own goroutine so pings keep being answered while a human types.
func watchRun(c *client.Client, runID string, interactive bool, in io.Reader, out io.Writer) error {
	w, err := c.Watch(runID)
	if err != nil {
		return err
	}
	defer w.Close()

	done := make(chan struct{})
	defer close(done)

	frames := make(chan frameResult)
	go func() {
		for {
			frame, ok, err := w.Next()
			select {
			case frames <- frameResult{frame: frame, ok: ok, err: err}:
			case <-done:
				return
			}
			if !ok || err != nil {
				return
			}
		}
	}()

	var lines chan string
	if interactive {
		lines = make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-done:
					return
				}
			}
		}()
	}

	var awaitID string
	inputClosed := false
	for {
		select {
		case r := <-frames:
			if r.err != nil {
				return r.err
			}
			if !r.ok {
				return nil
			}
			if r.frame.Event != nil && r.frame.Event.Type != domain.EventTypeRunAwaiting {
				awaitID = ""
			}
			if id := printFrame(out, r.frame); id != "" && interactive {
				if inputClosed {
					if err := w.Cancel("input closed"); err != nil {
						return err
					}
					continue
				}
				awaitID = id
				fmt.Fprint(out, "> ")
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				inputClosed = true
				if awaitID != "" {
					if err := w.Cancel("input closed"); err != nil {
						return err
					}
					awaitID = ""
				}
				continue
			}
			if awaitID == "" {
				fmt.Fprintln(out, "run is not awaiting input")
				continue
			}
			if err := w.Resume(awaitID, strings.TrimSpace(line)); err != nil {
				return err
			}
			awaitID = ""
		}
	}
}

// printFrame writes a frame to out and returns the await id when the frame
// announces an await.
func printFrame(out io.Writer, frame client.Frame) string {
	switch frame.Type {
	case "error":
		fmt.Fprintf(out, "error: %s: %s\n", frame.Code, frame.Message)
		return ""
	case "ack":
		return ""
	}
	if frame.Event == nil {
		return ""
	}

	evt := frame.Event
	fmt.Fprintf(out, "[%d] %s\n", evt.Seq, evt.Type)
	switch evt.Type {
	case domain.EventTypeMessageCompleted:
		var payload domain.MessageCompletedPayload
		if json.Unmarshal(evt.Payload, &payload) == nil {
			fmt.Fprintf(out, "  %s: %s\n", payload.Message.Role, payload.Message.Text())
		}
	case domain.EventTypeRunCompleted:
		var payload domain.RunCompletedPayload
		if json.Unmarshal(evt.Payload, &payload) == nil {
			fmt.Fprintf(out, "  %s\n", payload.Final.Text())
		}
	case domain.EventTypeRunFailed:
		var payload domain.RunFailedPayload
		if json.Unmarshal(evt.Payload, &payload) == nil {
			fmt.Fprintf(out, "  %s: %s\n", payload.Code, payload.Message)
		}
	case domain.EventTypeRunCancelled:
		var payload domain.RunCancelledPayload
		if json.Unmarshal(evt.Payload, &payload) == nil && payload.Reason != "" {
			fmt.Fprintf(out, "  reason: %s\n", payload.Reason)
		}
	case domain.EventTypeRunAwaiting:
		var payload domain.RunAwaitingPayload
		if json.Unmarshal(evt.Payload, &payload) == nil {
			fmt.Fprintf(out, "  %s\n", payload.Await.Message.Text())
			return payload.Await.AwaitID
		}
	}
	return ""
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
