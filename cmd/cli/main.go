// Command cli is a thin client for the monitor API: inspect status,
// metrics and history, or submit a manual check result.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

func main() {
	var (
		api    = flag.String("api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
		site   = flag.StringP("url", "u", "", "site URL to query or submit for")
		limit  = flag.Int("limit", 20, "history entries to fetch")
		status = flag.String("submit", "", "submit a manual result: up or down")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch flag.Arg(0) {
	case "status":
		err = get(*api + "/api/status")
	case "latest":
		err = get(*api + "/api/status/latest?url=" + url.QueryEscape(*site))
	case "metrics":
		err = get(*api + "/api/metrics")
	case "system":
		err = get(*api + "/api/metrics/system")
	case "history":
		err = get(fmt.Sprintf("%s/api/history?url=%s&limit=%d", *api, url.QueryEscape(*site), *limit))
	case "submit":
		err = submit(*api, *site, *status)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: cli [flags] <status|latest|metrics|system|history|submit>`)
	flag.PrintDefaults()
}

func get(u string) error {
	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("API returned %s", resp.Status)
	}
	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}

func submit(api, site, status string) error {
	if site == "" || (status != "up" && status != "down") {
		return fmt.Errorf("submit needs --url and --submit up|down")
	}
	body, _ := json.Marshal(map[string]any{
		"url":        site,
		"status":     status,
		"latency_ms": 0,
		"checked_at": time.Now().UTC(),
		"reason":     "manual",
	})
	resp, err := http.Post(api+"/api/checks", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("API returned %s", resp.Status)
	}
	fmt.Println("submitted")
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
