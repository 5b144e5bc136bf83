package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"marketdash/internal/alerts"
	"marketdash/internal/client"
	"marketdash/internal/config"
	grpcapi "marketdash/internal/grpc"
	"marketdash/internal/logging"
	"marketdash/internal/pubsub"
	"marketdash/pkg/models"
)

const requestTimeout = 10 * time.Second

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	api      *client.API
	state    *client.StateFile
	app      *client.AppState
	engine   *alerts.Engine
	notifier *alerts.Notifier
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	// Notifications and errors are printed for the user; the log only carries
	// problems.
	logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))

	symbols, err := config.LoadSymbols(cfg.Market.SymbolsFile)
	if err != nil {
		logger.Fatal("Failed to load symbols", zap.Error(err))
	}
	known := config.SymbolSet(symbols)

	stateFile, err := client.OpenState(cfg.Client.StateFile)
	if err != nil {
		logger.Fatal("Failed to open state file", zap.String("path", cfg.Client.StateFile), zap.Error(err))
	}

	mode, err := alerts.ParseThresholdMode(cfg.Client.ThresholdMode)
	if err != nil {
		logger.Fatal("Invalid threshold mode", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := alerts.NewNotifier(alerts.DefaultNotifierHistory)
	defer notifier.Close()

	book := alerts.NewBook(known, stateFile.Alerts(), stateFile)
	a := &app{
		cfg:      cfg,
		logger:   logger,
		api:      client.NewAPI(cfg.Client.ServerURL, nil),
		state:    stateFile,
		app:      client.NewAppState(book),
		engine:   alerts.NewEngine(book, notifier, mode, logger),
		notifier: notifier,
	}

	fmt.Println("Indian Market Dashboard CLI")
	fmt.Println("Server:", a.api.BaseURL())
	fmt.Println("Threshold mode:", a.engine.Mode())
	if user, ok := stateFile.User(); ok {
		fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
	}
	fmt.Println()
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "signup":
			if len(parts) < 4 {
				fmt.Println("Usage: signup <name> <email> <password>")
				continue
			}
			a.signup(ctx, strings.Join(parts[1:len(parts)-2], " "), parts[len(parts)-2], parts[len(parts)-1])
		case "login":
			if len(parts) != 3 {
				fmt.Println("Usage: login <email> <password>")
				continue
			}
			a.login(ctx, parts[1], parts[2])
		case "logout":
			a.logout()
		case "quotes", "refresh":
			a.refresh(ctx)
		case "search":
			a.search(strings.Join(parts[1:], " "))
		case "nifty":
			a.index(ctx, "NIFTY 50", a.api.Nifty)
		case "sensex":
			a.index(ctx, "SENSEX", a.api.Sensex)
		case "alert-add":
			if len(parts) != 4 {
				fmt.Println("Usage: alert-add <symbol> <price> <above|below>")
				continue
			}
			a.addAlert(parts[1], parts[2], parts[3])
		case "alert-list":
			a.listAlerts()
		case "alert-delete":
			if len(parts) != 2 {
				fmt.Println("Usage: alert-delete <id>")
				continue
			}
			a.deleteAlert(parts[1])
		case "watch":
			a.watch(ctx)
		case "stream":
			a.stream(ctx, parts[1:])
		case "grpc-watch":
			a.grpcWatch(ctx, parts[1:])
		case "help":
			printHelp()
		case "quit", "exit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Printf("Unknown command: %s\n", parts[0])
		}
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  signup <name> <email> <password>   - Create an account")
	fmt.Println("  login <email> <password>           - Log in")
	fmt.Println("  logout                             - Log out (alerts are kept)")
	fmt.Println("  quotes                             - Fetch quotes and check alerts")
	fmt.Println("  search <query>                     - Filter the last quotes by symbol or name")
	fmt.Println("  nifty | sensex                     - Show an index series")
	fmt.Println("  alert-add <symbol> <price> <dir>   - Add an alert (dir: above or below)")
	fmt.Println("  alert-list                         - List alerts")
	fmt.Println("  alert-delete <id>                  - Delete an alert")
	fmt.Println("  watch                              - Live dashboard with polling and search")
	fmt.Println("  stream [symbols]                   - Follow server pushes over WebSocket")
	fmt.Println("  grpc-watch [symbols]               - Follow server pushes over gRPC")
	fmt.Println("  quit                               - Exit")
}

func (a *app) requireLogin() bool {
	if a.state.Token() == "" {
		fmt.Println("Please login first")
		return false
	}
	return true
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func (a *app) signup(ctx context.Context, name, email, password string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	session, err := a.api.Signup(ctx, name, email, password)
	if err != nil {
		fmt.Println("Signup failed:", describe(err))
		return
	}
	a.startSession(session)
}

func (a *app) login(ctx context.Context, email, password string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	session, err := a.api.Login(ctx, email, password)
	if err != nil {
		fmt.Println("Login failed:", describe(err))
		return
	}
	a.startSession(session)
}

func (a *app) startSession(session client.Session) {
	if err := a.state.SetSession(session); err != nil {
		a.logger.Warn("Failed to persist session", zap.Error(err))
	}
	fmt.Printf("Welcome, %s!\n", session.User.Name)
}

func (a *app) logout() {
	if err := a.state.Logout(); err != nil {
		a.logger.Warn("Failed to persist logout", zap.Error(err))
	}
	fmt.Println("Logged out")
}

func (a *app) refresh(ctx context.Context) {
	if !a.requireLogin() {
		return
	}

	poller := client.NewPoller(a.api, a.state, a.app, a.engine, requestTimeout, a.logger)
	poller.OnRender(func(view client.View, notifications []*models.Notification) {
		for _, q := range view.Quotes {
			printQuote(q)
		}
		for _, n := range notifications {
			fmt.Println("🔔", n.Message())
		}
	})

	if err := poller.Refresh(ctx); err != nil {
		fmt.Println("Failed to fetch stock data:", describe(err))
	}
}

func printQuote(q models.Quote) {
	c := client.NewCard(q)
	fmt.Printf("%-12s %12s  %-22s %-14s %s\n", c.Symbol, c.Price, c.Change, c.Volume, c.Range)
}

func (a *app) search(query string) {
	quotes := a.app.Quotes()
	if len(quotes) == 0 {
		fmt.Println("No quotes loaded yet, run 'quotes' first")
		return
	}
	matches := client.Filter(quotes, query)
	if len(matches) == 0 {
		fmt.Printf("No stocks match %q\n", query)
		return
	}
	for _, q := range matches {
		printQuote(q)
	}
}

func (a *app) index(ctx context.Context, label string, fetch func(context.Context, string) (models.IndexSeries, error)) {
	if !a.requireLogin() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	series, err := fetch(ctx, a.state.Token())
	if err != nil {
		fmt.Printf("Failed to fetch %s: %s\n", label, describe(err))
		return
	}
	if len(series.Prices) == 0 || len(series.Timestamps) != len(series.Prices) {
		fmt.Printf("%s: no data\n", label)
		return
	}

	first, last := series.Prices[0], series.Prices[len(series.Prices)-1]
	fmt.Printf("%s: %.2f (%+.2f over %d points, %s to %s)\n",
		label, last, last-first, len(series.Prices),
		series.Timestamps[0].Local().Format(time.TimeOnly),
		series.Timestamps[len(series.Timestamps)-1].Local().Format(time.TimeOnly))
}

func (a *app) addAlert(symbol, price, direction string) {
	alert, err := a.app.Alerts.Add(symbol, price, direction)
	if err != nil {
		var verr *alerts.ValidationError
		if errors.As(err, &verr) {
			fmt.Println("Invalid alert:", verr.Message)
			return
		}
		fmt.Println("Alert added but not saved:", err)
		return
	}
	fmt.Printf("Alert %d set: %s\n", alert.ID, alert.String())
}

func (a *app) listAlerts() {
	list := a.app.Alerts.List()
	if len(list) == 0 {
		fmt.Println("No alerts")
		return
	}
	for _, al := range list {
		status := "active"
		if al.Triggered {
			status = "triggered"
		}
		fmt.Printf("%d  %-28s %s\n", al.ID, al.String(), status)
	}
}

func (a *app) deleteAlert(raw string) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Println("Invalid alert id:", raw)
		return
	}
	if err := a.app.Alerts.Delete(id); err != nil {
		fmt.Println("Failed to save alerts:", err)
		return
	}
	fmt.Println("Alert deleted")
}

// watch runs the live dashboard until the user quits.
func (a *app) watch(ctx context.Context) {
	if !a.requireLogin() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	searcher := client.NewSearcher(a.app, a.cfg.Client.SearchDebounce, func(query string, matches []models.Quote) {
		program.Send(searchMsg{query: query, matches: matches})
	})
	defer searcher.Stop()

	program = tea.NewProgram(newModel(searcher), tea.WithAltScreen())

	// The terminal belongs to the TUI while it runs.
	poller := client.NewPoller(a.api, a.state, a.app, a.engine, a.cfg.Client.PollInterval, zap.NewNop())
	poller.OnRender(func(view client.View, _ []*models.Notification) {
		program.Send(viewMsg{
			view:      view,
			active:    a.app.Alerts.Count() - a.app.Alerts.CountTriggered(),
			triggered: a.app.Alerts.CountTriggered(),
		})
	})

	// Alerts that fired from the REPL show up first, oldest at the bottom.
	recent := a.notifier.Recent()
	l := a.notifier.Listen("dashboard-tui", 16)
	defer a.notifier.Unlisten("dashboard-tui")
	go func() {
		for i := len(recent) - 1; i >= 0 && i >= len(recent)-maxNotices; i-- {
			program.Send(noticeMsg{text: "🔔 " + recent[i].Message()})
		}
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-l.C:
				if !ok {
					return
				}
				program.Send(noticeMsg{text: "🔔 " + n.Message()})
			}
		}
	}()

	go poller.Run(ctx)

	if _, err := program.Run(); err != nil {
		fmt.Println("Dashboard failed:", err)
	}
}

func upperAll(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		for _, part := range strings.Split(s, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func printSnapshot(snap pubsub.Snapshot) {
	fmt.Printf("[%s] %d quotes\n", snap.UpdatedAt.Local().Format(time.TimeOnly), len(snap.Quotes))
	for _, q := range snap.Quotes {
		printQuote(q)
	}
}

func (a *app) stream(ctx context.Context, args []string) {
	if !a.requireLogin() {
		return
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s := client.NewStream(a.cfg.Client.ServerURL, a.state.Token(), a.logger, upperAll(args)...)
	if err := s.Start(ctx); err != nil {
		fmt.Println("Failed to open stream:", err)
		return
	}
	defer s.Stop()

	fmt.Println("📈 Following quote pushes (Press Ctrl+C to stop)")
	for snap := range s.Snapshots() {
		printSnapshot(*snap)
		for _, n := range a.engine.Evaluate(snap.Quotes) {
			fmt.Println("🔔", n.Message())
		}
	}
}

func (a *app) grpcWatch(ctx context.Context, args []string) {
	if !a.requireLogin() {
		return
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	c, err := grpcapi.Dial(a.cfg.Client.GRPCAddr, a.state.Token())
	if err != nil {
		fmt.Println("Failed to connect:", err)
		return
	}
	defer c.Close()

	fmt.Printf("📈 Following quote pushes from %s (Press Ctrl+C to stop)\n", a.cfg.Client.GRPCAddr)
	err = c.Watch(ctx, upperAll(args), func(snap pubsub.Snapshot) error {
		printSnapshot(snap)
		for _, n := range a.engine.Evaluate(snap.Quotes) {
			fmt.Println("🔔", n.Message())
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Println("Stream ended:", err)
	}
}
