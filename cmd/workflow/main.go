// Command workflow runs a single declarative workflow invocation: load the
// YAML definition, validate and execute it, and print the resolved outputs.
// Exit codes follow spec section 6: 0 on success, non-zero on validation
// error, run failure, or internal error; the engine itself defines no
// further codes beyond what this binary chooses to surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/flowgraph/internal/promptfile"
	"github.com/dshills/flowgraph/workflow/compiler"
	"github.com/dshills/flowgraph/workflow/config"
	"github.com/dshills/flowgraph/workflow/emit"
	"github.com/dshills/flowgraph/workflow/metrics"
	"github.com/dshills/flowgraph/workflow/model"
	"github.com/dshills/flowgraph/workflow/providers"
	"github.com/dshills/flowgraph/workflow/runner"
	"github.com/dshills/flowgraph/workflow/tool"
)

const (
	exitOK         = 0
	exitValidation = 1
	exitRunFailure = 2
	exitInternal   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("workflow", flag.ContinueOnError)
	workflowPath := fs.String("workflow", "", "path to the workflow YAML definition")
	inputsJSON := fs.String("inputs", "{}", "JSON object of workflow inputs")
	threadID := fs.String("thread-id", "", "checkpoint thread id (enables resume)")
	resume := fs.Bool("resume", false, "resume from the latest checkpoint for thread-id")
	promptDir := fs.String("prompt-dir", "prompts", "directory of role -> system-prompt text files")
	traceJSON := fs.Bool("trace-json", false, "emit trace events as JSON lines on stdout")
	otelEndpoint := fs.String("otel-endpoint", "", "if set, export trace spans via OTLP/HTTP to this collector endpoint (host:port)")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) for the duration of the run")

	if err := fs.Parse(args); err != nil {
		return exitInternal
	}

	ctx := context.Background()

	var otelSink emit.Sink
	if *otelEndpoint != "" {
		sink, shutdown, err := emit.InitOTel(ctx, *otelEndpoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "workflow: %v\n", err)
			return exitInternal
		}
		defer shutdown(ctx)
		otelSink = sink
	}

	var collector *metrics.Collector
	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		collector = metrics.New(registry)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("workflow: metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}
	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "workflow: -workflow is required")
		return exitValidation
	}

	var inputs map[string]any
	if err := json.Unmarshal([]byte(*inputsJSON), &inputs); err != nil {
		fmt.Fprintf(os.Stderr, "workflow: parsing -inputs: %v\n", err)
		return exitValidation
	}

	r := runner.New(0)
	r.Models = model.NewRegistry()
	r.Factory = providers.NewFactory()
	r.Tools = tool.NewRegistry()
	r.Tier0 = compiler.NewDeterministicRegistry()
	r.Prompts = promptfile.New(*promptDir)
	r.Metrics = collector

	var sinks []emit.Sink
	if *traceJSON {
		sinks = append(sinks, emit.NewLog(os.Stdout, true))
	}
	if otelSink != nil {
		sinks = append(sinks, otelSink)
	}
	if len(sinks) > 0 {
		r.Sink = emit.NewMulti(false, sinks...)
	}

	result, err := r.Run(ctx, runner.Request{
		WorkflowPath: *workflowPath,
		Inputs:       inputs,
		ThreadID:     *threadID,
		Resume:       *resume,
	})
	if err != nil {
		if isValidationErr(err) {
			fmt.Fprintf(os.Stderr, "workflow: %v\n", err)
			return exitValidation
		}
		fmt.Fprintf(os.Stderr, "workflow: %v\n", err)
		return exitInternal
	}

	out, _ := json.MarshalIndent(struct {
		Status  string         `json:"status"`
		Outputs map[string]any `json:"outputs"`
	}{Status: result.Status, Outputs: result.Outputs}, "", "  ")
	fmt.Println(string(out))

	if len(result.UnresolvedOutputs) > 0 {
		fmt.Fprintf(os.Stderr, "workflow: unresolved outputs: %s\n", strings.Join(result.UnresolvedOutputs, ", "))
	}
	if result.Status != "success" {
		return exitRunFailure
	}
	return exitOK
}

func isValidationErr(err error) bool {
	var verr *config.ValidationError
	return errors.As(err, &verr)
}
