package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/kvit-s/kvit-editor/internal/cache"
	"github.com/kvit-s/kvit-editor/internal/config"
	"github.com/kvit-s/kvit-editor/internal/editor"
	"github.com/kvit-s/kvit-editor/internal/encoding"
	"github.com/kvit-s/kvit-editor/internal/history"
	"github.com/kvit-s/kvit-editor/internal/linter"
	"github.com/kvit-s/kvit-editor/internal/logging"
)

// Version info set by ldflags at build time
var (
	version    = "dev"
	commitHash = "dev"
	commitDate = "unknown"
)

var errorColor = color.New(color.FgRed)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "path to config file (empty for defaults)")
	logFile := flag.String("log", "", "log file path (overrides config, empty to disable)")
	jsonOutput := flag.Bool("json", false, "print the full result as JSON")
	showVersion := flag.Bool("version", false, "show version information and exit")

	command := flag.String("command", "", "command to run: view, create, str_replace, insert, undo_edit")
	path := flag.String("path", "", "absolute path to the file or directory")
	fileText := flag.String("file-text", "", "content for the create command")
	viewRange := flag.String("view-range", "", "line range for view, e.g. '12,24' or '12,-1'")
	oldStr := flag.String("old-str", "", "text to replace for str_replace")
	newStr := flag.String("new-str", "", "replacement or inserted text")
	insertLine := flag.Int("insert-line", 0, "line to insert after for insert (0 = top of file)")
	enableLint := flag.Bool("lint", false, "lint the edit and report new findings")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s-%s-%s\n", version, commitDate, commitHash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logPath := cfg.Log.File
	if flagWasSet("log") {
		logPath = *logFile
	}
	logger, err := logging.New(logPath, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Sync()

	historyDir := cfg.History.Dir
	if historyDir == "" {
		historyDir = filepath.Join(os.TempDir(), "kvit-editor-"+uuid.NewString())
	}
	store, err := cache.New(historyDir, int64(cfg.History.CacheSizeLimitMB)<<20, logger)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}

	var lint linter.Linter
	if cfg.Linter.Enabled {
		lint = linter.NewCommandLinter(cfg.Linter.Command, logger)
	}

	ed, err := editor.New(editor.Options{
		WorkspaceRoot: cfg.Workspace.Root,
		MaxFileSize:   int64(cfg.Editor.MaxFileSizeMB) << 20,
		History:       history.NewManager(store, cfg.History.MaxPerFile, logger),
		Encodings:     encoding.NewManager(cfg.Encoding.MaxCacheEntries, logger),
		Linter:        lint,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to create editor: %v", err)
	}

	args := editor.Arguments{
		Command:       editor.Command(*command),
		Path:          *path,
		EnableLinting: *enableLint,
	}
	if flagWasSet("file-text") {
		args.FileText = fileText
	}
	if flagWasSet("old-str") {
		args.OldStr = oldStr
	}
	if flagWasSet("new-str") {
		args.NewStr = newStr
	}
	if flagWasSet("insert-line") {
		args.InsertLine = insertLine
	}
	if flagWasSet("view-range") {
		rng, err := parseViewRange(*viewRange)
		if err != nil {
			log.Fatalf("Invalid -view-range: %v", err)
		}
		args.ViewRange = rng
	}

	res := ed.Execute(args)

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		if res.Error != "" {
			os.Exit(1)
		}
		return
	}

	if res.Error != "" {
		errorColor.Fprintln(os.Stderr, "ERROR:")
		fmt.Fprintln(os.Stderr, res.Error)
		os.Exit(1)
	}
	fmt.Println(res.Output)
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// parseViewRange turns "12,24" into the range the view command expects.
// A wrong element count is passed through so the editor reports it with
// its own range validation.
func parseViewRange(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", p)
		}
		out = append(out, n)
	}
	return out, nil
}
