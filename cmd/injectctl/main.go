package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/muhammadmuzzammil1998/jsonc"

	"github.com/GroundAura/InventoryInjector/internal/config"
	"github.com/GroundAura/InventoryInjector/internal/engine"
	"github.com/GroundAura/InventoryInjector/internal/gamedata"
	"github.com/GroundAura/InventoryInjector/internal/metrics"
	"github.com/GroundAura/InventoryInjector/internal/rules"
	"github.com/GroundAura/InventoryInjector/internal/util"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("injectctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", "warn", "log level (trace|debug|info|warn|error)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <command> [args]\n", fs.Name())
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  check --rules <dir> [--icons <dir>]\tvalidate a rule directory")
		fmt.Fprintln(fs.Output(), "  process --rules <dir> --records <file>\tapply rules to records and print them")
		fmt.Fprintln(fs.Output(), "  explain --rules <dir> --record <file>\ttrace the rule search for one record")
		fmt.Fprintln(fs.Output(), "  watch --rules <dir>\t\t\treload rules as files change")
		fmt.Fprintln(fs.Output(), "  import-forms --forms <yaml> --db <path>\tload a form dump into SQLite")
		fmt.Fprintln(fs.Output(), "  bench --rules <dir> --records <file>\tmeasure per-entry processing latency")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("missing subcommand")
	}
	logger := util.NewLoggerWithWriter(util.ParseLogLevel(*logLevel), stderr)

	switch args[0] {
	case "check":
		return runCheck(args[1:], stdout, stderr)
	case "process":
		return runProcess(args[1:], stdout, stderr, logger)
	case "explain":
		return runExplain(args[1:], stdout, stderr, logger)
	case "watch":
		return runWatch(args[1:], stderr, logger)
	case "import-forms":
		return runImportForms(args[1:], stdout, stderr, logger)
	case "bench":
		return runBench(args[1:], stdout, stderr, logger)
	default:
		fs.Usage()
		return fmt.Errorf("unknown subcommand %q%s", args[0], util.DidYouMean(args[0], []string{"check", "process", "explain", "watch", "import-forms", "bench"}))
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

const entryListMember = "_entryList"

func runCheck(args []string, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesDir := fs.String("rules", "", "path to the rule directory")
	iconRoot := fs.String("icons", "", "directory icon sources are resolved against; unset skips icon checks")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *rulesDir == "" {
		fs.Usage()
		return fmt.Errorf("check requires --rules <dir>")
	}

	cfg, err := config.LoadDir(*rulesDir)
	if err != nil {
		return err
	}
	set, buildProblems := rules.BuildRuleSet(cfg, rules.NewIconCache(iconResolver(*iconRoot)), util.NewDiscardLogger())
	problems := append(append([]config.Problem(nil), cfg.Problems...), buildProblems...)
	for _, rule := range set.Rules {
		for _, source := range rule.InvalidIconSources() {
			problems = append(problems, config.Problem{
				Path:    rule.Source,
				Message: fmt.Sprintf("icon source %q not found", source),
			})
		}
	}
	if len(problems) == 0 {
		fmt.Fprintf(stdout, "Configuration OK (%d rules)\n", set.Len())
		return nil
	}

	fmt.Fprintf(stderr, "Configuration has %d issue(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(stderr, "- %s\n", p.Error())
	}
	return fmt.Errorf("configuration validation failed")
}

// session is the state shared by commands that evaluate records.
type session struct {
	manager   *rules.Manager
	processor *engine.Processor
	collector *metrics.Collector
	close     func() error
}

func newSession(ctx context.Context, rulesDir, formsPath, iconRoot string, logger *util.Logger) (*session, error) {
	manager := rules.NewManager(rules.NewIconCache(iconResolver(iconRoot)), logger.Named("rules"))
	if _, err := manager.Reload(rulesDir, "startup"); err != nil {
		return nil, err
	}
	lookup, closeLookup, err := openLookup(ctx, formsPath, logger.Named("gamedata"))
	if err != nil {
		return nil, err
	}
	collector := metrics.NewCollector(true)
	return &session{
		manager:   manager,
		processor: engine.NewProcessor(manager, lookup, logger.Named("engine"), collector),
		collector: collector,
		close:     closeLookup,
	}, nil
}

// iconResolver checks sources against files under root. An empty root
// accepts any source.
func iconResolver(root string) rules.IconResolver {
	if root == "" {
		return nil
	}
	return rules.FSResolver{FS: os.DirFS(root)}
}

// openLookup opens a form dump: SQLite for .db/.sqlite, YAML otherwise. An
// empty path yields no lookup.
func openLookup(ctx context.Context, path string, logger *util.Logger) (gamedata.Lookup, func() error, error) {
	noop := func() error { return nil }
	if path == "" {
		return nil, noop, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		if _, err := os.Stat(path); err != nil {
			return nil, noop, fmt.Errorf("open forms: %w", err)
		}
		store, err := gamedata.OpenStore(ctx, path, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		table, err := gamedata.LoadTable(path)
		if err != nil {
			return nil, noop, err
		}
		logger.Debugf("loaded %d form(s) from %s", table.Len(), path)
		return table, noop, nil
	}
}

func readRecords(path string) (value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return value.Undefined(), fmt.Errorf("read records: %w", err)
	}
	if !jsonc.Valid(data) {
		return value.Undefined(), fmt.Errorf("%s: invalid JSON", path)
	}
	v, err := value.ParseJSON(jsonc.ToJSON(data))
	if err != nil {
		return value.Undefined(), fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func runProcess(args []string, stdout, stderr io.Writer, logger *util.Logger) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesDir := fs.String("rules", "", "path to the rule directory")
	recordsPath := fs.String("records", "", "JSON file holding a record, an array of records or a list object with _entryList")
	formsPath := fs.String("forms", "", "form dump (YAML, or SQLite with .db)")
	iconRoot := fs.String("icons", "", "directory icon sources are resolved against")
	indent := fs.String("indent", "", "token written once per nesting level before each member; empty writes a single space")
	asJSON := fs.Bool("json", false, "print records as JSON")
	stats := fs.Bool("stats", false, "print rule counters after processing")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *rulesDir == "" || *recordsPath == "" {
		fs.Usage()
		return fmt.Errorf("process requires --rules <dir> and --records <file>")
	}

	ctx := context.Background()
	sess, err := newSession(ctx, *rulesDir, *formsPath, *iconRoot, logger)
	if err != nil {
		return err
	}
	defer sess.close()

	input, err := readRecords(*recordsPath)
	if err != nil {
		return err
	}

	var records []value.Value
	iconUpdates := func(rec value.Value) {
		fn, _ := engine.IconFunction(rec)
		// No list state offline: the entry's own source or the default.
		req := engine.ResolveIcon(rec, value.Undefined())
		logger.Debugf("icon update via %s: %s %s", fn, req.Source, value.Stringify(req.Label))
	}
	switch {
	case input.IsArray():
		for i, n := 0, input.ArraySize(); i < n; i++ {
			rec := input.GetElement(i)
			sess.processor.ProcessEntry(rec, iconUpdates)
			records = append(records, rec)
		}
	case input.IsObject() && input.HasMember(entryListMember):
		sess.processor.ProcessList(input, nil, iconUpdates)
		list := input.GetMember(entryListMember)
		for i, n := 0, list.ArraySize(); i < n; i++ {
			records = append(records, list.GetElement(i))
		}
	default:
		sess.processor.ProcessEntry(input, iconUpdates)
		records = append(records, input)
	}

	for _, rec := range records {
		if *asJSON {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			fmt.Fprintln(stdout, string(data))
			continue
		}
		fmt.Fprintln(stdout, value.StringifyIndent(rec, *indent))
	}

	if *stats {
		snap := sess.collector.Snapshot()
		fmt.Fprintf(stdout, "matched=%d applied=%d iconUpdates=%d misses=%d\n",
			snap.Totals.Matched, snap.Totals.Applied, snap.Totals.IconUpdates, snap.Totals.Misses)
		for _, r := range snap.Rules {
			fmt.Fprintf(stdout, "  %s (%s): matched=%d applied=%d iconUpdates=%d\n", r.Rule, r.Source, r.Matched, r.Applied, r.IconUpdates)
		}
	}
	return nil
}

func runExplain(args []string, stdout, stderr io.Writer, logger *util.Logger) error {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesDir := fs.String("rules", "", "path to the rule directory")
	recordPath := fs.String("record", "", "JSON file holding one record")
	formsPath := fs.String("forms", "", "form dump (YAML, or SQLite with .db)")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *rulesDir == "" || *recordPath == "" {
		fs.Usage()
		return fmt.Errorf("explain requires --rules <dir> and --record <file>")
	}

	ctx := context.Background()
	sess, err := newSession(ctx, *rulesDir, *formsPath, "", logger)
	if err != nil {
		return err
	}
	defer sess.close()

	rec, err := readRecords(*recordPath)
	if err != nil {
		return err
	}
	if !rec.IsObject() {
		return fmt.Errorf("%s: expected a single record object", *recordPath)
	}

	exp := sess.processor.Explain(rec)
	if exp.Form != nil {
		fmt.Fprintf(stdout, "form %08X %s (%s)\n", exp.Form.ID, exp.Form.EditorID, exp.Form.Type)
	}
	fmt.Fprintf(stdout, "record %s\n", value.Stringify(rec))
	for _, check := range exp.Checks {
		fmt.Fprintf(stdout, "rule %s (%s)\n", check.Rule, check.Source)
		for _, line := range rules.SummarizePredicateTrace(check.Predicate) {
			fmt.Fprintf(stdout, "  %s\n", line)
		}
		if check.Matched {
			if check.HasInfo {
				fmt.Fprintf(stdout, "=> matched %s\n", check.Rule)
			} else {
				fmt.Fprintf(stdout, "=> matched %s (no properties, entry left as is)\n", check.Rule)
			}
			return nil
		}
	}
	fmt.Fprintln(stdout, "=> no rule matched")
	return nil
}

func runWatch(args []string, stderr io.Writer, logger *util.Logger) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesDir := fs.String("rules", "", "path to the rule directory")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *rulesDir == "" {
		fs.Usage()
		return fmt.Errorf("watch requires --rules <dir>")
	}
	if logger.Level() > util.LevelInfo {
		logger.SetLevel(util.LevelInfo)
	}

	manager := rules.NewManager(nil, logger.Named("rules"))
	if _, err := manager.Reload(*rulesDir, "startup"); err != nil {
		return err
	}

	watcher, err := config.NewWatcher(*rulesDir, logger.Named("watch"))
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go watcher.Run(ctx)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("watch stopped")
			return nil
		case reason := <-watcher.Changes():
			if _, err := manager.Reload(*rulesDir, reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case <-hup:
			if _, err := manager.Reload(*rulesDir, "received SIGHUP"); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		}
	}
}

func runImportForms(args []string, stdout, stderr io.Writer, logger *util.Logger) error {
	fs := flag.NewFlagSet("import-forms", flag.ContinueOnError)
	fs.SetOutput(stderr)
	formsPath := fs.String("forms", "", "YAML form dump")
	dbPath := fs.String("db", "", "SQLite database to write")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *formsPath == "" || *dbPath == "" {
		fs.Usage()
		return fmt.Errorf("import-forms requires --forms <yaml> and --db <path>")
	}

	table, err := gamedata.LoadTable(*formsPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := gamedata.OpenStore(ctx, *dbPath, logger.Named("gamedata"))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Import(ctx, table); err != nil {
		return err
	}
	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d form(s); store holds %d\n", table.Len(), count)
	return nil
}
