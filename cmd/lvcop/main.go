// Package main provides the lvcop command line client for the Aequitas
// LV-COP liquidity forecasting platform.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aequitas-ai/lvcop-go/client"
	"github.com/aequitas-ai/lvcop-go/internal/cli"
	"github.com/aequitas-ai/lvcop-go/internal/config"
	"github.com/aequitas-ai/lvcop-go/internal/version"
	"github.com/aequitas-ai/lvcop-go/notify"
	"github.com/aequitas-ai/lvcop-go/pkg/logger"
	"github.com/aequitas-ai/lvcop-go/session"
)

const dateLayout = "2006-01-02"

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath *string
	envFile    *string
	baseURL    *string
	verbose    *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "", "Path to config file (default: per-user config)"),
		envFile:    fs.String("env", "", "Path to .env file to load"),
		baseURL:    fs.String("base-url", "", "Platform API origin (overrides config)"),
		verbose:    fs.Bool("v", false, "Verbose logging"),
	}
}

func main() {
	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginCommon := addCommonFlags(loginCmd)
	loginEmail := loginCmd.String("email", "", "Account email")
	loginPassword := loginCmd.String("password", "", "Account password (or LVCOP_PASSWORD)")

	logoutCmd := flag.NewFlagSet("logout", flag.ExitOnError)
	logoutCommon := addCommonFlags(logoutCmd)

	whoamiCmd := flag.NewFlagSet("whoami", flag.ExitOnError)
	whoamiCommon := addCommonFlags(whoamiCmd)

	healthCmd := flag.NewFlagSet("health", flag.ExitOnError)
	healthCommon := addCommonFlags(healthCmd)

	forecastCmd := flag.NewFlagSet("forecast", flag.ExitOnError)
	forecastCommon := addCommonFlags(forecastCmd)
	forecastDate := forecastCmd.String("date", "", "Target date YYYY-MM-DD (default: today)")
	forecastRealtime := forecastCmd.Bool("realtime", false, "Fetch the realtime forecast")
	forecastList := forecastCmd.Bool("list", false, "List stored forecasts")
	forecastRegime := forecastCmd.String("regime", "", "Filter list by regime (steady_state, elevated, crisis)")
	forecastPage := forecastCmd.Int("page", 1, "List page")

	positionsCmd := flag.NewFlagSet("positions", flag.ExitOnError)
	positionsCommon := addCommonFlags(positionsCmd)
	positionsSummary := positionsCmd.Bool("summary", false, "Show the portfolio summary instead of listing")
	positionsDate := positionsCmd.String("date", "", "Snapshot date YYYY-MM-DD")
	positionsAsset := positionsCmd.String("asset-class", "", "Filter by asset class")
	positionsPage := positionsCmd.Int("page", 1, "List page")
	positionsPageSize := positionsCmd.Int("page-size", 20, "List page size")

	streakCmd := flag.NewFlagSet("streak", flag.ExitOnError)
	streakCommon := addCommonFlags(streakCmd)
	streakClaim := streakCmd.Bool("claim", false, "Claim the daily bonus")

	completionCmd := flag.NewFlagSet("completion", flag.ExitOnError)
	completionInstall := completionCmd.Bool("install", false, "Install the script for the shell")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "login":
		loginCmd.Parse(os.Args[2:])
		runWithClient(ctx, loginCommon, func(ctx context.Context, c *client.Client) error {
			return handleLogin(ctx, c, *loginEmail, *loginPassword)
		})
	case "logout":
		logoutCmd.Parse(os.Args[2:])
		runWithClient(ctx, logoutCommon, handleLogout)
	case "whoami":
		whoamiCmd.Parse(os.Args[2:])
		runWithClient(ctx, whoamiCommon, handleWhoami)
	case "health":
		healthCmd.Parse(os.Args[2:])
		runWithClient(ctx, healthCommon, handleHealth)
	case "forecast":
		forecastCmd.Parse(os.Args[2:])
		runWithClient(ctx, forecastCommon, func(ctx context.Context, c *client.Client) error {
			return handleForecast(ctx, c, *forecastDate, *forecastRealtime, *forecastList, *forecastRegime, *forecastPage)
		})
	case "positions":
		positionsCmd.Parse(os.Args[2:])
		runWithClient(ctx, positionsCommon, func(ctx context.Context, c *client.Client) error {
			return handlePositions(ctx, c, *positionsSummary, *positionsDate, *positionsAsset, *positionsPage, *positionsPageSize)
		})
	case "streak":
		streakCmd.Parse(os.Args[2:])
		runWithClient(ctx, streakCommon, func(ctx context.Context, c *client.Client) error {
			return handleStreak(ctx, c, *streakClaim)
		})
	case "completion":
		completionCmd.Parse(os.Args[2:])
		shell := completionCmd.Arg(0)
		if shell == "" {
			shell = "bash"
		}
		if err := handleCompletion(shell, *completionInstall); err != nil {
			cli.Errorf("%v", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version.UserAgent())
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func handleCompletion(shell string, install bool) error {
	if install {
		return cli.InstallCompletion(shell)
	}
	script, err := cli.Completion(shell)
	if err != nil {
		return err
	}
	fmt.Print(script)
	return nil
}

// runWithClient wires configuration, session storage, and the API client,
// then runs fn and reports its outcome.
func runWithClient(ctx context.Context, common *commonFlags, fn func(context.Context, *client.Client) error) {
	c, err := buildClient(ctx, common)
	if err != nil {
		cli.Errorf("%v", err)
		os.Exit(1)
	}
	if err := fn(ctx, c); err != nil {
		printFailure(err)
		os.Exit(1)
	}
}

func buildClient(ctx context.Context, common *commonFlags) (*client.Client, error) {
	if *common.envFile != "" {
		if err := godotenv.Load(*common.envFile); err != nil {
			return nil, fmt.Errorf("load env %s: %w", *common.envFile, err)
		}
	} else {
		_ = godotenv.Load() // allow .env in the working directory
	}

	cfg, err := config.Load(*common.configPath)
	if err != nil {
		return nil, err
	}
	if *common.baseURL != "" {
		cfg.BaseURL = *common.baseURL
	}

	level := cfg.Log.Level
	if *common.verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{
		Service: "lvcop",
		Level:   level,
		Console: cfg.Log.Console,
	})

	storage, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(ctx, session.StoreConfig{
		Storage:   storage,
		Namespace: cfg.Session.Namespace,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	return client.New(client.Config{
		BaseURL:        cfg.BaseURL,
		APIPrefix:      cfg.APIPrefix,
		Sessions:       store,
		Timeout:        time.Duration(cfg.Timeout),
		RefreshTimeout: time.Duration(cfg.RefreshTimeout),
		RefreshEarly:   time.Duration(cfg.RefreshEarly),
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		Notifier:       notify.NewLogSink(log),
		Logger:         log,
	})
}

func buildStorage(cfg *config.Config) (session.Storage, error) {
	var base session.Storage
	switch cfg.Session.Backend {
	case config.BackendMemory:
		base = session.NewMemoryStorage()
	case config.BackendRedis:
		rs, err := session.NewRedisStorage(session.RedisStorageConfig{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		base = rs
	default:
		fs, err := session.NewFileStorage(cfg.Session.Dir)
		if err != nil {
			return nil, err
		}
		base = fs
	}

	if cfg.Session.SealSecret == "" {
		return base, nil
	}
	namespace := cfg.Session.Namespace
	if namespace == "" {
		namespace = session.DefaultNamespace
	}
	key, err := session.DeriveSealingKey([]byte(cfg.Session.SealSecret), namespace)
	if err != nil {
		return nil, err
	}
	return session.NewSealedStorage(base, key)
}

func handleLogin(ctx context.Context, c *client.Client, email, password string) error {
	if email == "" {
		return fmt.Errorf("login requires -email")
	}
	if password == "" {
		password = os.Getenv("LVCOP_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("login requires -password or LVCOP_PASSWORD")
	}

	sess, err := c.Auth().Login(ctx, email, password)
	if err != nil {
		return err
	}
	if sess.Principal != nil {
		cli.Successf("Logged in as %s %s <%s>", sess.Principal.FirstName, sess.Principal.LastName, sess.Principal.Email)
	} else {
		cli.Success("Logged in")
	}
	return nil
}

func handleLogout(ctx context.Context, c *client.Client) error {
	if err := c.Auth().Logout(ctx); err != nil {
		return err
	}
	cli.Success("Logged out")
	return nil
}

func handleWhoami(ctx context.Context, c *client.Client) error {
	snap, ok := c.Sessions().Snapshot()
	if !ok {
		fmt.Println("Not logged in")
		return nil
	}

	info, err := c.Auth().Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("User:         %s\n", info.Email)
	fmt.Printf("Organization: %s\n", info.OrgID)
	fmt.Printf("Role:         %s\n", info.Role)
	fmt.Printf("Tier:         %s\n", info.Tier)
	if len(info.Permissions) > 0 {
		fmt.Printf("Permissions:  %s\n", strings.Join(info.Permissions, ", "))
	}
	fmt.Printf("Level:        %d (%d XP, %d day streak)\n", info.Level, info.XPTotal, info.StreakDays)
	if !snap.ExpiresAt.IsZero() {
		fmt.Printf("Session expires in %s (%s)\n",
			cli.FormatDuration(time.Until(snap.ExpiresAt)), snap.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func handleHealth(ctx context.Context, c *client.Client) error {
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s %s (%s): %s", health.App, health.Version, health.Environment, health.Status)
	if health.Status == "healthy" {
		cli.Success(line)
	} else {
		cli.Warning(line)
	}

	ready, err := c.Ready(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Readiness: %s\n", ready.Status)
	for name, ok := range ready.Checks {
		state := cli.Colorize("ok", cli.ColorGreen)
		if !ok {
			state = cli.Colorize("failing", cli.ColorRed)
		}
		fmt.Printf("  %-12s %s\n", name, state)
	}
	return nil
}

func handleForecast(ctx context.Context, c *client.Client, date string, realtime, list bool, regime string, page int) error {
	if list {
		items, pagination, err := c.Forecasts().List(ctx, client.ForecastListParams{
			ListOptions: client.ListOptions{Page: page},
			Regime:      client.Regime(regime),
		})
		if err != nil {
			return err
		}
		for _, f := range items {
			fmt.Printf("%-36s  %s  %-12s  net %14.2f  conf %.2f\n",
				f.ID, f.ForecastDate.Format(dateLayout), f.Regime, float64(f.PredictedNetFlowP50), float64(f.ConfidenceScore))
		}
		if pagination != nil {
			fmt.Printf("Page %d of %d (%d forecasts)\n", pagination.Page, pagination.TotalPages, pagination.TotalItems)
		}
		return nil
	}

	if realtime {
		spinner := cli.NewSpinner("Fetching realtime forecast")
		spinner.Start()
		f, err := c.Forecasts().Realtime(ctx)
		spinner.Stop()
		if err != nil {
			return err
		}
		printForecast(f)
		return nil
	}

	target := time.Now()
	if date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return fmt.Errorf("invalid -date %q, expected YYYY-MM-DD", date)
		}
		target = parsed
	}
	spinner := cli.NewSpinner("Fetching forecast")
	spinner.Start()
	f, err := c.Forecasts().Daily(ctx, target)
	spinner.Stop()
	if err != nil {
		return err
	}
	printForecast(f)
	return nil
}

func printForecast(f *client.Forecast) {
	fmt.Printf("Forecast %s (%s)\n", f.ID, f.ForecastType)
	fmt.Printf("  Target date:  %s\n", f.TargetDate.Format(dateLayout))
	fmt.Printf("  Regime:       %s (%.0f%% confidence)\n", f.Regime, float64(f.RegimeConfidence)*100)
	fmt.Printf("  Net flow p50: %.2f %s\n", float64(f.PredictedNetFlowP50), f.Currency)
	fmt.Printf("  Band p5..p95: %.2f .. %.2f\n", float64(f.PredictedNetFlowP5), float64(f.PredictedNetFlowP95))
	fmt.Printf("  Model:        %s %s\n", f.ModelName, f.ModelVersion)
}

func handlePositions(ctx context.Context, c *client.Client, summary bool, date, assetClass string, page, pageSize int) error {
	snapshotDate := time.Time{}
	if date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return fmt.Errorf("invalid -date %q, expected YYYY-MM-DD", date)
		}
		snapshotDate = parsed
	}

	if summary {
		s, err := c.Positions().Summary(ctx, snapshotDate)
		if err != nil {
			return err
		}
		fmt.Printf("Portfolio on %s: %d positions, market value %.2f\n",
			s.SnapshotDate.Format(dateLayout), s.TotalPositions, float64(s.TotalMarketValue))
		for class, value := range s.ByAssetClass {
			fmt.Printf("  %-14s %16.2f\n", class, float64(value))
		}
		return nil
	}

	items, pagination, err := c.Positions().List(ctx, client.PositionListParams{
		ListOptions:  client.ListOptions{Page: page, PageSize: pageSize},
		SnapshotDate: snapshotDate,
		AssetClass:   client.AssetClass(assetClass),
	})
	if err != nil {
		return err
	}
	for _, p := range items {
		fmt.Printf("%-10s  %-30s  value %16.2f  weight %6.2f%%\n",
			p.Ticker, p.SecurityName, float64(p.MarketValue), float64(p.PortfolioWeight)*100)
	}
	if pagination != nil {
		fmt.Printf("Page %d of %d (%d positions)\n", pagination.Page, pagination.TotalPages, pagination.TotalItems)
	}
	return nil
}

func handleStreak(ctx context.Context, c *client.Client, claim bool) error {
	if claim {
		bonus, err := c.Gamification().ClaimDaily(ctx)
		if err != nil {
			return err
		}
		if bonus.Claimed {
			cli.Successf("Claimed %d XP (day %d, x%.1f)", bonus.XPEarned, bonus.StreakDays, bonus.BonusMultiplier)
		} else {
			cli.Info(bonus.Message)
		}
		return nil
	}

	streak, err := c.Gamification().Streak(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Current streak: %d days (longest %d)\n", streak.CurrentStreak, streak.LongestStreak)
	if streak.StreakProtected {
		fmt.Println("Streak freeze active")
	}
	return nil
}

// printFailure renders an error for the terminal, using the failure code
// and request ID when the error came from the platform.
func printFailure(err error) {
	if f, ok := client.AsFailure(err); ok {
		cli.Errorf("%s: %s", notify.TitleOf(f.Code), f.Message)
		if f.RequestID != "" {
			fmt.Fprintf(os.Stderr, "  request id: %s\n", f.RequestID)
		}
		if f.RetryAfter > 0 {
			fmt.Fprintf(os.Stderr, "  retry after: %s\n", f.RetryAfter)
		}
		return
	}
	cli.Errorf("%v", err)
}

func printUsage() {
	fmt.Println(`lvcop - Aequitas LV-COP command line client

Usage:
  lvcop <command> [options]

Commands:
  login     Sign in and store the session
    -email <addr>     Account email
    -password <pw>    Account password (or LVCOP_PASSWORD)

  logout    Sign out and clear the stored session

  whoami    Show the signed-in identity and session expiry

  health    Check platform health and readiness

  forecast  Fetch liquidity forecasts
    -date <day>       Target date YYYY-MM-DD (default: today)
    -realtime         Fetch the realtime forecast
    -list             List stored forecasts
    -regime <name>    Filter list by regime
    -page <n>         List page

  positions Manage position snapshots
    -summary          Show the portfolio summary
    -date <day>       Snapshot date YYYY-MM-DD
    -asset-class <c>  Filter by asset class
    -page <n>         List page
    -page-size <n>    List page size

  streak    Show the activity streak
    -claim            Claim the daily bonus

  completion [bash|zsh|fish]  Print a shell completion script
    -install          Install it for the shell instead

  version   Print the client version

Common options:
  -config <path>    Config file (default: per-user config)
  -env <path>       .env file to load
  -base-url <url>   Platform API origin
  -v                Verbose logging`)
}
