package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"console_go/internal/api"
	"console_go/internal/config"
	"console_go/internal/devserver"
	"console_go/internal/domain"
	"console_go/internal/security"
	"console_go/internal/selection"
	"console_go/internal/store/sqlite"
	"console_go/internal/syncer"
	"console_go/internal/transport"
	"console_go/internal/tui"
)

var (
	linkPhone        string
	linkConversation string
)

func main() {
	root := &cobra.Command{
		Use:          "console",
		Short:        "operator console for the messaging platform",
		SilenceUsage: true,
	}

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "run the interactive operator console",
		RunE:  runConsole,
	}
	consoleCmd.Flags().StringVar(&linkPhone, "phone", "", "open the conversation for this customer phone")
	consoleCmd.Flags().StringVar(&linkConversation, "conversation", "", "open this conversation id")

	followCmd := &cobra.Command{
		Use:   "follow",
		Short: "stream synchronized snapshots as JSON lines",
		RunE:  runFollow,
	}

	devserverCmd := &cobra.Command{
		Use:   "devserver",
		Short: "run a local platform simulator with seeded traffic",
		RunE:  runDevserver,
	}

	root.AddCommand(consoleCmd, followCmd, devserverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildSyncer wires the shared console stack: state DB, API client, websocket
// transport and the sync engine, all bound to ctx.
func buildSyncer(ctx context.Context, cfg *config.Config) (*syncer.Engine, *sql.DB, error) {
	db, err := sqlite.Open(cfg.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state db: %w", err)
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate state db: %w", err)
	}

	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey))
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init encryptor: %w", err)
	}
	snapshots := sqlite.NewSnapshotRepo(db, encryptor)

	client := api.NewClient(cfg.APIBaseURL, cfg.OperatorUsername, cfg.OperatorPassword)
	tc := transport.New(cfg.WSURL, client.Token, cfg.ReconnectMin, cfg.ReconnectMax)
	engine := syncer.New(client, snapshots, cfg.Scope(), cfg.PollInterval)

	go func() {
		if err := engine.Run(ctx); err != nil {
			log.Printf("syncer stopped: %v", err)
		}
	}()
	go func() {
		if err := tc.Run(ctx); err != nil {
			log.Printf("transport stopped: %v", err)
		}
	}()
	go engine.Pump(ctx, tc.Events(), tc.StatusChanges())

	return engine, db, nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateConsole(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, db, err := buildSyncer(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sel := selection.New(selection.ParseDeepLink(linkPhone, linkConversation))
	prefs := sqlite.NewPreferenceRepo(db)

	// STATUS_FILTER wins when set; otherwise resume the last used scope.
	if os.Getenv("STATUS_FILTER") == "" {
		if v, err := prefs.Get(ctx, sqlite.PrefLastScope); err == nil {
			switch v {
			case domain.StatusActive, domain.StatusArchived, domain.StatusAttention:
				scope := cfg.Scope()
				scope.Status = v
				engine.SetScope(ctx, scope)
			}
		}
	}

	program := tea.NewProgram(tui.New(engine, sel, prefs), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}

// followLine is the JSONL record emitted per snapshot.
type followLine struct {
	Time     time.Time `json:"time"`
	Scope    string    `json:"scope"`
	Conn     string    `json:"conn"`
	Stale    bool      `json:"stale"`
	Fetching bool      `json:"fetching"`
	Loaded   bool      `json:"loaded"`
	Count    int       `json:"count"`
	Error    string    `json:"error,omitempty"`
}

func runFollow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateConsole(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, db, err := buildSyncer(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	snaps, cancel := engine.Subscribe()
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			line := followLine{
				Time:     time.Now().UTC(),
				Scope:    snap.Scope.Key(),
				Conn:     snap.Conn.String(),
				Stale:    snap.Stale,
				Fetching: snap.Fetching,
				Loaded:   snap.Loaded,
				Count:    len(snap.Conversations),
			}
			if snap.Err != nil {
				line.Error = snap.Err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
	}
}

func runDevserver(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.DevDBPath)
	if err != nil {
		return fmt.Errorf("open dev db: %w", err)
	}
	defer db.Close()
	if err := sqlite.Migrate(db); err != nil {
		return fmt.Errorf("migrate dev db: %w", err)
	}

	hasher := security.PasswordHasher{}
	hashed, err := hasher.Hash(cfg.OperatorPassword)
	if err != nil {
		return fmt.Errorf("hash operator password: %w", err)
	}
	operators := sqlite.NewOperatorRepo(db)
	if err := operators.Create(ctx, cfg.OperatorUsername, hashed); err != nil {
		return fmt.Errorf("create operator: %w", err)
	}

	store := sqlite.NewConversationRepo(db)
	if err := devserver.Seed(ctx, store); err != nil {
		return fmt.Errorf("seed conversations: %w", err)
	}

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	hub := devserver.NewHub()

	go devserver.Traffic(ctx, store, hub, cfg.TrafficInterval)

	server := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: devserver.NewRouter(cfg, db, hub, tokenSvc, hasher),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("dev simulator listening on %s", cfg.HTTPAddr())
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("dev simulator stopped")
	return nil
}
