// ABOUTME: Cobra subcommands for shelf-gateway: serve, init, bootstrap, token, health, routes
// ABOUTME: Each command loads the gateway config from getConfigPath unless noted otherwise

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/config"
	"github.com/2389/shelf-gateway/internal/gateway"
	"github.com/2389/shelf-gateway/internal/server"
	"github.com/2389/shelf-gateway/internal/store"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shelf-gateway",
		Short:         "Personal library server",
		Long:          "shelf-gateway serves a personal book library behind a session-aware authorization gateway.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newBootstrapCommand())
	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newHealthCommand())
	cmd.AddCommand(newRoutesCommand())

	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath := getConfigPath()

			cyan := color.New(color.FgCyan)
			cyan.Print(banner)
			gray := color.New(color.FgHiBlack)
			gray.Printf("    version: %s\n\n", version)

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := setupLogger(cfg.Logging)

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)

			green.Print("    ▶ ")
			fmt.Printf("Config:    %s\n", configPath)
			green.Print("    ▶ ")
			fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
			green.Print("    ▶ ")
			fmt.Printf("Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
			green.Print("    ▶ ")
			fmt.Printf("Desktop:   ")
			if cfg.Desktop.Enabled {
				cyan.Println("enabled")
			} else {
				gray.Println("disabled")
			}

			if cfg.Tailscale.Enabled {
				green.Print("    ▶ ")
				fmt.Printf("Tailscale: ")
				cyan.Print(cfg.Tailscale.Hostname)
				if cfg.Tailscale.Funnel {
					yellow.Print(" [funnel]")
				}
				if cfg.Tailscale.Ephemeral {
					gray.Print(" (ephemeral)")
				}
				fmt.Println()
			}
			fmt.Println()

			logger.Info("starting shelf-gateway",
				"config", configPath,
				"http_addr", cfg.Server.HTTPAddr,
				"version", version,
			)

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check readiness of a running gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(getConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
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
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
			return nil
		},
	}
}

func newRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the gateway's route classification table",
		Long: `Print the ordered route rules and the decision each one yields for an
anonymous caller, a signed-in user, and an admin. Uses the routes section of
the config file when present, otherwise the built-in rules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules := gateway.DefaultRules()
			if cfg, err := config.Load(getConfigPath()); err == nil {
				rules = gateway.RulesFromConfig(cfg.Routes)
			}
			return printRoutes(cmd.OutOrStdout(), rules)
		},
	}
}

// printRoutes writes the rule table for rules to w.
func printRoutes(w io.Writer, rules gateway.Rules) error {
	user := &auth.Principal{ID: "user", Role: store.RoleUser}
	admin := &auth.Principal{ID: "admin", Role: store.RoleAdmin}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCLASS\tPREFIXES\tANONYMOUS\tUSER\tADMIN")
	for i, rule := range rules.Ordered() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			rule.Class,
			strings.Join(rule.Prefixes, " "),
			gateway.Decide(rule.Class, nil),
			gateway.Decide(rule.Class, user),
			gateway.Decide(rule.Class, admin),
		)
	}
	fmt.Fprintf(tw, "-\t%s\t(anything else)\t%s\t%s\t%s\n",
		gateway.ClassPage,
		gateway.Decide(gateway.ClassPage, nil),
		gateway.Decide(gateway.ClassPage, user),
		gateway.Decide(gateway.ClassPage, admin),
	)
	fmt.Fprintf(tw, "-\texcluded\t%s\tcontinue\tcontinue\tcontinue\n", strings.Join(rules.Excluded, " "))
	return tw.Flush()
}

// randomSecret returns n random bytes encoded as URL-safe base64.
func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// renderConfig produces the YAML written by init and bootstrap.
func renderConfig(httpAddr, dbPath, jwtSecret, desktopToken string, desktopEnabled bool, ts config.TailscaleConfig, logLevel, logFormat string) string {
	var cfg strings.Builder
	cfg.WriteString("# shelf-gateway configuration\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("  driver: \"sqlite\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", jwtSecret))
	cfg.WriteString("  session_ttl: \"720h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("desktop:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", desktopEnabled))
	cfg.WriteString(fmt.Sprintf("  token: %q\n", desktopToken))
	cfg.WriteString("\n")

	cfg.WriteString("live:\n")
	cfg.WriteString("  poll_interval: \"2s\"\n")
	cfg.WriteString("  keepalive_interval: \"15s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", ts.Enabled))
	if ts.Enabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", ts.Hostname))
		if ts.AuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", ts.AuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", ts.Ephemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", ts.Funnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))
	return cfg.String()
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
		},
	}
}

func runInit(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "shelf-gateway configuration setup")
	fmt.Fprintln(out, "=================================")
	fmt.Fprintln(out)

	defaultDBPath := filepath.Join(getDataPath(), "library.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", "localhost:8080")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", defaultDBPath)

	fmt.Fprintln(out, "\n--- Desktop Mode ---")
	desktopEnabled := yes(prompt(reader, out, "Enable desktop API?", "yes"))

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	var ts config.TailscaleConfig
	ts.Enabled = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if ts.Enabled {
		ts.Hostname = prompt(reader, out, "Tailscale hostname", "shelf")
		ts.AuthKey = prompt(reader, out, "Tailscale auth key (leave empty for interactive)", "")
		ts.Ephemeral = yes(prompt(reader, out, "Ephemeral node?", "no"))
		ts.Funnel = yes(prompt(reader, out, "Enable Funnel (public share links)?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	jwtSecret, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	desktopToken, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("generating desktop token: %w", err)
	}

	content := renderConfig(httpAddr, dbPath, jwtSecret, desktopToken, desktopEnabled, ts, logLevel, logFormat)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nNext:")
	fmt.Fprintln(out, "  shelf-gateway bootstrap --username you   # create the admin account")
	fmt.Fprintln(out, "  shelf-gateway serve")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}

// readPassword reads a password from the terminal without echo.
func readPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// bootstrapOptions holds flags for the bootstrap command.
type bootstrapOptions struct {
	name     string
	username string
	password string
}

func newBootstrapCommand() *cobra.Command {
	opts := &bootstrapOptions{}

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create config (if missing), database, and the first admin account",
		Long: `First-time setup in one command:

  1. Creates a config file with random JWT and desktop secrets (if none exists)
  2. Creates the database and the admin account
  3. Writes a session token for the admin next to the config file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBootstrap(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "display name (defaults to username)")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "admin password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

// loadOrCreateConfig loads the config at configPath, writing a fresh one
// with generated secrets first if the file does not exist.
func loadOrCreateConfig(configPath string) (*config.Config, bool, error) {
	if _, err := os.Stat(configPath); err == nil {
		cfg, err := config.Load(configPath)
		return cfg, false, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	jwtSecret, err := randomSecret(32)
	if err != nil {
		return nil, false, fmt.Errorf("generating JWT secret: %w", err)
	}
	desktopToken, err := randomSecret(32)
	if err != nil {
		return nil, false, fmt.Errorf("generating desktop token: %w", err)
	}

	dataPath := getDataPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, false, fmt.Errorf("creating data directory: %w", err)
	}

	content := renderConfig("localhost:8080", filepath.Join(dataPath, "library.db"), jwtSecret, desktopToken, true, config.TailscaleConfig{}, "info", "text")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return nil, false, fmt.Errorf("writing config file: %w", err)
	}

	cfg, err := config.Load(configPath)
	return cfg, true, err
}

func runBootstrap(cmd *cobra.Command, opts *bootstrapOptions) error {
	ctx := cmd.Context()
	username := strings.TrimSpace(opts.username)
	displayName := strings.TrimSpace(opts.name)
	if len(displayName) > 100 {
		return fmt.Errorf("display name exceeds maximum length of 100 characters")
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	configPath := getConfigPath()
	cfg, created, err := loadOrCreateConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if created {
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	s, err := server.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	count, err := s.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("bootstrap already complete: %d account(s) exist", count)
	}

	password := opts.password
	if password == "" {
		if password, err = readPassword("  Password: "); err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
	}

	user, err := server.CreateUser(ctx, s, username, password, displayName, store.RoleAdmin)
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	green.Printf("  ✓ Created admin: %s\n", user.Username)

	decoder, err := auth.NewSessionDecoder([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating session decoder: %w", err)
	}
	token, err := decoder.Issue(auth.Principal{ID: user.ID, Role: user.Role, DisplayName: user.DisplayName}, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	expiresAt := time.Now().Add(cfg.Auth.SessionTTL).UTC()
	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin Account")
	cyan.Println("  -------------")
	fmt.Printf("  ID:           %s\n", user.ID)
	fmt.Printf("  Username:     %s\n", user.Username)
	fmt.Printf("  Display Name: %s\n", user.DisplayName)
	fmt.Printf("  Token:        %s (expires %s)\n", tokenPath, expiresAt.Format("Jan 02, 2006"))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    shelf-gateway serve")
	fmt.Println()
	return nil
}

// tokenOptions holds flags for the token command.
type tokenOptions struct {
	userID      string
	role        string
	displayName string
	ttl         time.Duration
}

func newTokenCommand() *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for an existing account",
		Long: `Mint a session token signed with the configured JWT secret. The account
must exist; role and display name default to the stored values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.userID, "user-id", "", "account ID")
	cmd.Flags().StringVar(&opts.role, "role", "", "role claim (admin|user)")
	cmd.Flags().StringVar(&opts.displayName, "display-name", "", "display name claim")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "token lifetime (defaults to auth.session_ttl)")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func runToken(cmd *cobra.Command, opts *tokenOptions) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := server.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	user, err := s.GetUser(cmd.Context(), opts.userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no account with id %q", opts.userID)
	}
	if err != nil {
		return fmt.Errorf("looking up account: %w", err)
	}

	p := auth.Principal{ID: user.ID, Role: user.Role, DisplayName: user.DisplayName}
	if opts.role != "" {
		p.Role = store.Role(opts.role)
		if !p.Role.Valid() {
			return fmt.Errorf("--role must be \"admin\" or \"user\"")
		}
	}
	if opts.displayName != "" {
		p.DisplayName = opts.displayName
	}
	ttl := opts.ttl
	if ttl <= 0 {
		ttl = cfg.Auth.SessionTTL
	}

	decoder, err := auth.NewSessionDecoder([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating session decoder: %w", err)
	}
	token, err := decoder.Issue(p, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
