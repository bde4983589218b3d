package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/panodent/pano-gateway/internal/logger"
)

// jobctl is a small operator CLI for a running gateway: submit an
// analysis, check a job, cancel it, or promote its artifacts.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "jobctl",
	})
	logger.SetDefaultLogger(appLogger)

	server := flag.String("server", "http://localhost:8080", "Gateway base URL")
	action := flag.String("action", "status", "One of: submit, status, cancel, promote")
	imageURL := flag.String("image-url", "", "Image URL for submit")
	debug := flag.Bool("debug", false, "Request visualization artifacts on submit")
	wait := flag.Bool("wait", false, "Submit in sync mode and wait for the result")
	jobID := flag.String("job", "", "Job id for status/cancel/promote")
	artifacts := flag.String("artifacts", "", "Comma-separated artifact names for promote")
	dest := flag.String("dest", "", "Destination prefix for promote")
	timeout := flag.Duration("timeout", 20*time.Minute, "HTTP client timeout")
	flag.Parse()

	client := resty.New().SetBaseURL(strings.TrimSuffix(*server, "/")).SetTimeout(*timeout)

	var (
		resp *resty.Response
		err  error
	)

	switch *action {
	case "submit":
		if *imageURL == "" {
			appLogger.Fatal("submit requires -image-url")
		}
		resp, err = client.R().
			SetQueryParam("wait_for_result", fmt.Sprintf("%v", *wait)).
			SetBody(map[string]interface{}{"image_url": *imageURL, "debug": *debug}).
			Post("/analyze")
	case "status":
		if *jobID == "" {
			appLogger.Fatal("status requires -job")
		}
		resp, err = client.R().Get("/job-status/" + *jobID)
	case "cancel":
		if *jobID == "" {
			appLogger.Fatal("cancel requires -job")
		}
		resp, err = client.R().Delete("/jobs/" + *jobID)
	case "promote":
		if *jobID == "" || *artifacts == "" || *dest == "" {
			appLogger.Fatal("promote requires -job, -artifacts, and -dest")
		}
		resp, err = client.R().
			SetBody(map[string]interface{}{
				"job_id":             *jobID,
				"artifact_names":     strings.Split(*artifacts, ","),
				"destination_prefix": *dest,
			}).
			Post("/promote")
	default:
		appLogger.Fatalf("unknown action %q", *action)
	}

	if err != nil {
		appLogger.WithError(err).Fatal("Request failed")
	}

	var pretty json.RawMessage = resp.Body()
	out, jerr := json.MarshalIndent(pretty, "", "  ")
	if jerr != nil {
		fmt.Println(resp.String())
	} else {
		fmt.Println(string(out))
	}

	if resp.IsError() {
		os.Exit(1)
	}
}
