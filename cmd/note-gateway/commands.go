// ABOUTME: Auxiliary subcommands: init, health, tools, convert, token and stats
// ABOUTME: Each loads configuration the same way serve does

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/note-gateway/internal/auth"
	"github.com/2389/note-gateway/internal/markdown"
	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/notetools"
	"github.com/2389/note-gateway/internal/store"
	"github.com/2389/note-gateway/internal/tools"
)

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/health", host, cfg.Server.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

// runTools lists the catalog without contacting note.com.
func runTools() error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	renderer, err := markdown.RendererFor(cfg.Markdown.Engine)
	if err != nil {
		return err
	}
	client := noteapi.New(noteapi.Config{BaseURL: cfg.Note.BaseURL}, nil)
	defer client.Close()

	reg := tools.NewRegistry(nil)
	if err := notetools.Register(reg, client, markdown.NewPipeline(renderer, nil), nil); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	cyan := color.New(color.FgCyan)
	for _, d := range reg.List() {
		cyan.Printf("  %-28s", d.Name)
		fmt.Println(d.Description)
	}
	fmt.Printf("\n%d tools\n", reg.Len())
	return nil
}

func runConvert(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("convert takes at most one file argument")
	}

	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	renderer, err := markdown.RendererFor(cfg.Markdown.Engine)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	src, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println(markdown.NewPipeline(renderer, nil).Convert(string(src)))
	return nil
}

// runToken issues a bearer token. Supports "--subject value", "--subject=value"
// and the same forms for --ttl.
func runToken(args []string) error {
	var subject string
	ttl := 24 * time.Hour

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--subject" || arg == "-s":
			if i+1 >= len(args) {
				return fmt.Errorf("--subject requires a value")
			}
			subject = args[i+1]
			i++
		case strings.HasPrefix(arg, "--subject="):
			subject = strings.TrimPrefix(arg, "--subject=")
		case arg == "--ttl":
			if i+1 >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = d
			i++
		case strings.HasPrefix(arg, "--ttl="):
			d, err := time.ParseDuration(strings.TrimPrefix(arg, "--ttl="))
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = d
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("--subject flag is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; bearer authentication is disabled")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(subject, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runStats(ctx context.Context) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured; the journal is disabled")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer s.Close()

	stats, err := s.ToolCallStats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if len(stats) == 0 {
		fmt.Println("no tool calls recorded")
		return nil
	}

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	bold.Printf("%-28s %8s %8s %10s  %s\n", "TOOL", "CALLS", "ERRORS", "AVG MS", "LAST CALLED")
	for _, st := range stats {
		fmt.Printf("%-28s %8d ", st.Tool, st.Calls)
		if st.Errors > 0 {
			red.Printf("%8d", st.Errors)
		} else {
			fmt.Printf("%8d", st.Errors)
		}
		fmt.Printf(" %10.1f  %s\n", st.AvgDurationMs, st.LastCalledAt.Local().Format(time.DateTime))
	}
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("note-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "journal.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	host := prompt(reader, "Listen host", "127.0.0.1")
	port := prompt(reader, "Listen port", "3000")

	fmt.Println("\n--- note.com Credentials ---")
	fmt.Println("Cookies can be referenced from NOTE_SESSION_V5 and NOTE_XSRF_TOKEN.")
	useEnv := isYes(prompt(reader, "Reference credentials from the environment?", "yes"))

	fmt.Println("\n--- Markdown ---")
	engine := prompt(reader, "Markdown engine (note/commonmark)", "note")

	fmt.Println("\n--- Tool-call Journal ---")
	dbPath := ""
	if isYes(prompt(reader, "Record tool calls in SQLite?", "yes")) {
		dbPath = prompt(reader, "SQLite database path", defaultDbPath)
	}

	fmt.Println("\n--- Authentication ---")
	var jwtSecret string
	if isYes(prompt(reader, "Require bearer tokens on /mcp and /sse?", "no")) {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# note-gateway configuration\n")
	cfg.WriteString("# Generated by note-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  host: \"%s\"\n", host))
	cfg.WriteString(fmt.Sprintf("  port: %s\n", port))
	cfg.WriteString("\n")

	cfg.WriteString("note:\n")
	cfg.WriteString("  base_url: \"https://note.com/api\"\n")
	if useEnv {
		cfg.WriteString("  # Cookie values copied from a logged-in browser session\n")
		cfg.WriteString("  session: \"${NOTE_SESSION_V5}\"\n")
		cfg.WriteString("  xsrf_token: \"${NOTE_XSRF_TOKEN}\"\n")
	} else {
		cfg.WriteString("  # Set session and xsrf_token, or email and password\n")
		cfg.WriteString("  session: \"\"\n")
		cfg.WriteString("  xsrf_token: \"\"\n")
	}
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("  # Cache idempotent GETs; 0s disables the cache\n")
	cfg.WriteString("  cache_ttl: \"0s\"\n")
	cfg.WriteString("  cache_size: 256\n")
	cfg.WriteString("\n")

	cfg.WriteString("markdown:\n")
	cfg.WriteString(fmt.Sprintf("  engine: \"%s\"\n", engine))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString("  # Empty disables the tool-call journal\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	if jwtSecret != "" {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may hold a JWT secret.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	if jwtSecret != "" {
		fmt.Println("Issue a client token with:")
		fmt.Println("  note-gateway token --subject my-client")
	}
	fmt.Println("\nTo start the server:")
	fmt.Printf("  note-gateway serve\n")

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
