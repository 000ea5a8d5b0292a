// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe  string `json:"probe"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running API server",
		Long:  `Query the liveness and readiness probes on the metrics address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if appCfg.Metrics.Addr == "" {
				return oops.Code("CONFIG_INVALID").Errorf("metrics.addr is required to query status")
			}
			return runStatus(cmd, cfg, baseURL(appCfg.Metrics.Addr))
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "probe timeout")

	return cmd
}

// baseURL turns a listen address such as ":9100" into a dialable URL.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

// runStatus probes the server and prints the result. It fails when any
// probe fails so scripts can rely on the exit code.
func runStatus(cmd *cobra.Command, cfg *statusConfig, base string) error {
	client := &http.Client{Timeout: cfg.timeout}
	statuses := []ProbeStatus{
		queryProbe(cmd.Context(), client, "liveness", base+"/healthz/liveness"),
		queryProbe(cmd.Context(), client, "readiness", base+"/healthz/readiness"),
	}

	var output string
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
		}
		output = string(data)
	} else {
		output = formatStatusTable(statuses)
	}
	cmd.Println(output)

	for _, s := range statuses {
		if !s.OK {
			return oops.Code("SERVER_UNHEALTHY").With("probe", s.Probe).Errorf("%s probe failed", s.Probe)
		}
	}
	return nil
}

// queryProbe GETs a probe endpoint. A 200 is healthy; any other status or
// transport error is not.
func queryProbe(ctx context.Context, client *http.Client, probe, url string) ProbeStatus {
	status := ProbeStatus{Probe: probe}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // detail is informational
	status.Status = resp.StatusCode
	status.Detail = strings.TrimSpace(string(body))
	status.OK = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATE\tHTTP\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t-----\t----\t------")

	for _, s := range statuses {
		state := "ok"
		if !s.OK {
			state = "failing"
		}
		code, detail := "-", s.Detail
		if s.Status != 0 {
			code = fmt.Sprintf("%d", s.Status)
		}
		if s.Error != "" {
			detail = s.Error
		}
		if detail == "" {
			detail = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Probe, state, code, detail)
	}

	_ = w.Flush()
	return buf.String()
}
