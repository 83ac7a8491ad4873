// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	sites := strings.TrimSpace(os.Getenv("SITES"))
	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	dataDir := strings.TrimSpace(os.Getenv("DATA_DIR"))

	if sites == "" {
		warn("SITES is empty — the scheduler will be idle; only manual submissions will arrive.")
	} else {
		ok(fmt.Sprintf("SITES has %d entries", len(strings.Split(sites, ","))))
	}
	if strings.Contains(sites, " ") {
		warn("SITES contains spaces; use comma-separated with no spaces, e.g. a.com,b.com")
	}

	// The system refuses to start with a limiter that can never grant.
	if v := os.Getenv("ALERT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			fail("ALERT_BURST must be a positive integer, got " + v)
		}
	}
	if v := os.Getenv("ALERT_WINDOW_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil || f <= 0 {
			fail("ALERT_WINDOW_SEC must be a positive number, got " + v)
		}
	}
	if v := os.Getenv("HISTORY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			fail("HISTORY_CAP must be a positive integer, got " + v)
		}
	}

	if apiAddr == "" {
		warn("ADDR is empty; default in your app may be used.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	backends := 0
	for _, v := range []string{db, sqlitePath, dataDir} {
		if v != "" {
			backends++
		}
	}
	switch {
	case backends == 0:
		warn("no DATABASE_URL/SQLITE_PATH/DATA_DIR — state will be in-memory and lost on restart.")
	case backends > 1:
		warn("multiple storage backends set; DATABASE_URL wins, then SQLITE_PATH, then DATA_DIR.")
	default:
		ok("storage backend configured")
	}

	if os.Getenv("SLACK_WEBHOOK") == "" {
		warn("SLACK_WEBHOOK empty — alerts go to the log file only.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	ok("preflight passed")
}
