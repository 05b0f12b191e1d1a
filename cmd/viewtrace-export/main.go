// Command viewtrace-export lists and exports sessions straight from the
// data directory, without a running agent.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonesrussell/viewtrace/internal/config"
	"github.com/jonesrussell/viewtrace/internal/logger"
	"github.com/jonesrussell/viewtrace/internal/session"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	dataDir := flag.String("data-dir", "", "data directory (defaults to the configured one)")
	format := flag.String("format", "json", "export format: json or report")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return 2
	}

	dir := *dataDir
	if dir == "" {
		cfg, err := config.Load(config.Path("config.yml"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		dir = cfg.Service.DataDir
	}

	backend := storage.Select(dir, logger.NewNop())
	if backend == nil {
		fmt.Fprintf(os.Stderr, "No usable storage in %s\n", dir)
		return 1
	}
	defer backend.Close()

	store := storage.NewManager(backend, logger.NewNop(), storage.ManagerOptions{})

	switch cmd := flag.Arg(0); cmd {
	case "list":
		return list(store)
	case "export":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "export requires a session id")
			return 2
		}
		return export(store, flag.Arg(1), *format)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  viewtrace-export [flags] list
  viewtrace-export [flags] export <session-id>

Flags:
`)
	flag.PrintDefaults()
}

func list(store *storage.Manager) int {
	metas, err := store.ListSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
		return 1
	}
	if len(metas) == 0 {
		fmt.Println("No stored sessions.")
		return 0
	}

	for _, meta := range metas {
		start := time.UnixMilli(meta.StartTimeMs).UTC().Format(time.RFC3339)
		fmt.Printf("%s  start=%s  pages=%d  events=%d\n",
			meta.SessionID, start, meta.TotalPages, meta.EventCount)
	}
	return 0
}

func export(store *storage.Manager, id, format string) int {
	record, err := store.LoadSession(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load session %s: %v\n", id, err)
		return 1
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render session: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	case "report":
		fmt.Print(session.Report(record))
	default:
		fmt.Fprintf(os.Stderr, "Unknown format %q\n", format)
		return 2
	}
	return 0
}
