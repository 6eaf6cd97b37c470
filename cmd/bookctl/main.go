// Command bookctl runs one webhook payload through the full booking flow using the
// collaborators configured in the environment, and prints the spoken results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/voice-scheduler/cmd/mainconfig"
	"github.com/wolfman30/voice-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-scheduler/internal/config"
	"github.com/wolfman30/voice-scheduler/internal/scheduling"
	"github.com/wolfman30/voice-scheduler/internal/toolcall"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

type result struct {
	ToolCallID string `json:"toolCallId"`
	Tool       string `json:"tool"`
	Result     string `json:"result"`
	Outcome    string `json:"outcome,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Replayed   bool   `json:"replayed,omitempty"`
}

func main() {
	payloadPath := flag.String("payload", "-", "path to a webhook JSON payload, or - for stdin")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	raw, err := readPayload(*payloadPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load aws config:", err)
		os.Exit(1)
	}
	rt, err := bootstrap.BuildRuntime(ctx, cfg, bootstrap.Options{AWS: awsCfg, Registerer: prometheus.NewRegistry()}, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rt.Close()

	results, err := run(ctx, rt.Service, raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)
}

type handler interface {
	Handle(ctx context.Context, inv toolcall.Invocation) scheduling.Reply
}

func run(ctx context.Context, svc handler, raw []byte) ([]result, error) {
	invocations, err := toolcall.NormalizeAll(raw)
	if err != nil {
		return nil, fmt.Errorf("bookctl: %w", err)
	}
	out := make([]result, 0, len(invocations))
	for _, inv := range invocations {
		reply := svc.Handle(ctx, inv)
		r := result{
			ToolCallID: inv.ToolCallID,
			Tool:       string(inv.Tool),
			Result:     reply.Message,
			Replayed:   reply.Replayed,
		}
		if reply.Outcome != nil {
			r.Outcome = string(reply.Outcome.Kind)
			r.Reason = string(reply.Outcome.FailureReason)
		}
		out = append(out, r)
	}
	return out, nil
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bookctl: read payload: %w", err)
	}
	return raw, nil
}
