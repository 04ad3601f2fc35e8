// ABOUTME: Entry point for tidewave-gateway, the MCP gateway in front of a development app
// ABOUTME: Wires the file ledger, database, tools, transport and gateway, then serves

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tidewave-gateway/internal/builtins"
	"github.com/2389/tidewave-gateway/internal/config"
	"github.com/2389/tidewave-gateway/internal/database"
	"github.com/2389/tidewave-gateway/internal/files"
	"github.com/2389/tidewave-gateway/internal/gateway"
	"github.com/2389/tidewave-gateway/internal/mcp"
	"github.com/2389/tidewave-gateway/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _   _     _
 | |_(_) __| | _____      ____ ___   _____
 | __| |/ _' |/ _ \ \ /\ / / _' \ \ / / _ \
 | |_| | (_| |  __/\ V  V / (_| |\ V /  __/
  \__|_|\__,_|\___| \_/\_/ \__,_| \_/ \___|
`

// getConfigPath returns the path to the gateway config file.
// Priority: TIDEWAVE_CONFIG env var > XDG_CONFIG_HOME/tidewave/gateway.yaml > ~/.config/tidewave/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TIDEWAVE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tidewave", "gateway.yaml")
}

// loadConfig reads the config file, or uses defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: tidewave-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Start the gateway server")
		fmt.Println("  init       Create a new config file interactively")
		fmt.Println("  tools      List the tools offered to agents")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "tools":
		err = runTools(ctx, os.Stdout)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Project:   %s\n", a.ledger.Root())
	green.Print("    ▶ ")
	fmt.Printf("MCP:       http://%s%s/mcp\n", cfg.Server.HTTPAddr, a.gateway.Prefix())
	if cfg.Server.UpstreamURL != "" {
		green.Print("    ▶ ")
		fmt.Printf("Upstream:  %s\n", cfg.Server.UpstreamURL)
	}
	if cfg.Gateway.AllowRemoteAccess {
		yellow.Print("    ! ")
		fmt.Println("Remote access is enabled")
	}
	fmt.Println()

	logger.Info("starting tidewave-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"project_root", a.ledger.Root(),
	)

	srv := gateway.NewServer(cfg.Server.HTTPAddr, a.gateway, a.transport, logger)
	return srv.Run(ctx)
}

// app holds the wired components and what must be closed on exit.
type app struct {
	ledger    *files.Ledger
	catalog   *tools.Catalog
	transport *mcp.Transport
	gateway   *gateway.Gateway

	db       *database.DB
	packages *builtins.PackageIndex
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	root := cfg.Project.Root
	if root == "" {
		var err error
		root, err = files.ResolveRoot(ctx)
		if err != nil {
			return nil, fmt.Errorf("no project root: set project.root or run inside a git repository: %w", err)
		}
	}

	ledger, err := files.NewLedger(root)
	if err != nil {
		return nil, err
	}

	a := &app{ledger: ledger}

	if cfg.Database.DSN != "" {
		a.db, err = database.Open(ctx, cfg.Database.Driver, resolveDSN(ledger.Root(), cfg.Database.DSN), logger)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
	}

	evaluator, err := builtins.NewCommandEvaluator(cfg.Eval.Command, ledger.Root())
	if err != nil {
		a.Close()
		return nil, err
	}

	a.packages = builtins.NewPackageIndex(cfg.Packages.SearchURL, cfg.Packages.CacheTTL)

	// grep falls back to an in-process search without ripgrep.
	rg, _ := exec.LookPath("rg")

	a.catalog, err = tools.NewCatalog(logger, builtins.All(builtins.Deps{
		Ledger:          ledger,
		DB:              a.db,
		Evaluator:       evaluator,
		EvalTimeout:     cfg.Eval.Timeout,
		LintCommand:     cfg.Lint.Command,
		LintOKExitCodes: cfg.Lint.OKExitCodes,
		LogPath:         cfg.Logs.Path,
		Packages:        a.packages,
		RipgrepPath:     rg,
		Logger:          logger,
	})...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building tool catalog: %w", err)
	}

	server, err := mcp.NewServer(a.catalog, version, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	a.transport = mcp.NewTransport(server, logger)

	projectName := cfg.Project.Name
	if projectName == "" {
		projectName = filepath.Base(ledger.Root())
	}

	a.gateway, err = gateway.New(gateway.Options{
		Gateway: cfg.Gateway,
		Info: gateway.ProjectInfo{
			ProjectName:     projectName,
			FrameworkType:   cfg.Project.FrameworkType,
			TidewaveVersion: version,
			Team:            cfg.Project.Team,
		},
		Transport:   a.transport,
		UpstreamURL: cfg.Server.UpstreamURL,
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	return a, nil
}

func (a *app) Close() {
	if a.packages != nil {
		a.packages.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// resolveDSN makes a relative SQLite path relative to the project root.
func resolveDSN(root, dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(root, dsn)
}

func runTools(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	printTools(out, a.catalog)
	return nil
}

func printTools(out io.Writer, catalog *tools.Catalog) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	for _, d := range catalog.Resolve(true).List() {
		summary, _, _ := strings.Cut(d.Description, "\n")
		fprintf(out, "  %s", cyan.Sprint(d.Name))
		if d.HasTag(tools.TagFileSystem) {
			fprintf(out, " %s", gray.Sprint("[fs]"))
		}
		fprintf(out, "\n      %s\n", summary)
	}
	fprintf(out, "\n%s\n", gray.Sprint("[fs] tools are listed only with ?include_fs_tools=true"))
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fprintf(out, "tidewave-gateway configuration setup\n")
	fprintf(out, "====================================\n\n")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fprintf(out, "Aborted.\n")
			return nil
		}
	}

	fprintf(out, "\n--- Server Configuration ---\n")
	httpAddr := prompt(reader, out, "HTTP address", "127.0.0.1:4000")
	upstream := prompt(reader, out, "Application URL to proxy (leave empty for none)", "http://127.0.0.1:3000")

	fprintf(out, "\n--- Project Configuration ---\n")
	framework := prompt(reader, out, "Framework type", "")
	evalCommand := prompt(reader, out, "Eval command (code is appended as the last argument)", "")
	lintCommand := prompt(reader, out, "Lint command (leave empty to disable run_linter)", "")
	dsn := prompt(reader, out, "SQLite database path (leave empty for none)", "")
	logPath := prompt(reader, out, "Application log file", filepath.Join("log", "development.log"))

	fprintf(out, "\n--- Logging Configuration ---\n")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# tidewave-gateway configuration\n")
	cfg.WriteString("# Generated by tidewave-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString(fmt.Sprintf("  upstream_url: %q\n", upstream))
	cfg.WriteString("\n")

	cfg.WriteString("gateway:\n")
	cfg.WriteString(fmt.Sprintf("  path_prefix: %q\n", config.DefaultPathPrefix))
	cfg.WriteString("  allow_remote_access: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("project:\n")
	cfg.WriteString(fmt.Sprintf("  framework_type: %q\n", framework))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString("  driver: \"sqlite\"\n")
	cfg.WriteString(fmt.Sprintf("  dsn: %q\n", dsn))
	cfg.WriteString("\n")

	cfg.WriteString("eval:\n")
	cfg.WriteString(fmt.Sprintf("  command: %q\n", evalCommand))
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("lint:\n")
	cfg.WriteString(fmt.Sprintf("  command: %q\n", lintCommand))
	cfg.WriteString("\n")

	cfg.WriteString("logs:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", logPath))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fprintf(out, "\nConfig written to %s\n", outputFile)
	fprintf(out, "\nTo start the server:\n")
	fprintf(out, "  TIDEWAVE_CONFIG=%s tidewave-gateway serve\n", outputFile)

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fprintf(out, "\n")
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
