package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	scrapeFormat       string
	scrapeProvider     string
	scrapeModel        string
	scrapeInstructions string
	scrapeNoCache      bool
	scrapeWait         bool

	batchFormat   string
	batchParallel int
	batchDelayMs  int
	batchName     string
)

func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Submit a single scrape job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"url":           args[0],
				"output_format": scrapeFormat,
			}
			if scrapeProvider != "" {
				body["transform_provider"] = scrapeProvider
			}
			if scrapeModel != "" {
				body["transform_model"] = scrapeModel
			}
			if scrapeInstructions != "" {
				body["custom_instructions"] = scrapeInstructions
			}
			if scrapeNoCache {
				body["use_cache"] = false
			}
			return call(http.MethodPost, "/scrape", body)
		},
	}

	cmd.Flags().StringVarP(&scrapeFormat, "format", "f", "markdown", "output format (markdown/json/xml/csv/html/text)")
	cmd.Flags().StringVar(&scrapeProvider, "provider", "", "transform provider (ollama/openai/custom)")
	cmd.Flags().StringVar(&scrapeModel, "model", "", "transform model name")
	cmd.Flags().StringVar(&scrapeInstructions, "instructions", "", "custom transform instructions")
	cmd.Flags().BoolVar(&scrapeNoCache, "no-cache", false, "bypass the artifact cache")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show a task's current status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodGet, "/scrape/"+args[0], nil)
		},
	}
}

func resultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result [task-id]",
		Short: "Fetch a completed task's artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodGet, "/scrape/"+args[0]+"/result", nil)
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodDelete, "/scrape/"+args[0], nil)
		},
	}
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [url ...]",
		Short: "Submit a batch of scrape jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"name":                      batchName,
				"urls":                      args,
				"output_format":             batchFormat,
				"parallel_limit":            batchParallel,
				"delay_between_requests_ms": batchDelayMs,
			}
			return call(http.MethodPost, "/scrape/batch", body)
		},
	}

	cmd.Flags().StringVarP(&batchFormat, "format", "f", "markdown", "output format for every URL")
	cmd.Flags().IntVarP(&batchParallel, "parallel", "n", 2, "concurrent scrapes within the batch")
	cmd.Flags().IntVar(&batchDelayMs, "delay-ms", 0, "per-URL delay before scraping, in milliseconds")
	cmd.Flags().StringVar(&batchName, "name", "", "batch display name")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [section]",
		Short: "Show service stats (sections: browser, cache, memory)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/stats"
			if len(args) == 1 {
				section := strings.ToLower(args[0])
				switch section {
				case "browser", "cache", "memory":
					path += "/" + section
				default:
					return fmt.Errorf("unknown stats section %q", section)
				}
			}
			return call(http.MethodGet, path, nil)
		},
	}
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe service liveness and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err := call(http.MethodGet, "/health", nil)
			fmt.Fprintf(cmd.ErrOrStderr(), "round trip: %s\n", time.Since(start).Round(time.Millisecond))
			return err
		},
	}
}
