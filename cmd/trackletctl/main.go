// main.go - Admin control tool for tracklet
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracklet/internal"
	"tracklet/internal/config"
	"tracklet/internal/jobs"
	"tracklet/internal/pages"
	"tracklet/internal/seeder"
	"tracklet/internal/visits"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&StatusCommand{},
	&PurgeCommand{},
	&GeoIPCommand{},
	&SeedCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	var pageCount, visitCount int64
	if err := db.Model(&pages.Page{}).Count(&pageCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&visits.Visit{}).Count(&visitCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	cfg := config.GetConfig()
	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Pages: %d", pageCount)
	log.Printf("- Visits: %d", visitCount)
	log.Printf("- Geo provider: %s", cfg.GeoProvider)
	if app.GeoLite != nil {
		log.Printf("- GeoLite loaded: %t", app.GeoLite.Loaded())
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// PurgeCommand deletes visits past the retention period once.
type PurgeCommand struct{}

func (c *PurgeCommand) Name() string { return "purge" }
func (c *PurgeCommand) Description() string {
	return "Deletes visits older than -days (defaults to the configured retention)"
}

func (c *PurgeCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	days := fs.Int("days", config.GetConfig().VisitRetentionDays, "retention in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}
	if *days <= 0 {
		return fmt.Errorf("retention must be positive, got %d days", *days)
	}

	deleted, err := jobs.NewRetentionJob(app.DBManager, app.Logger, *days).Run()
	if err != nil {
		return err
	}
	log.Printf("Deleted %d visits older than %d days", deleted, *days)
	return nil
}

// GeoIPCommand resolves an address through the configured provider.
type GeoIPCommand struct{}

func (c *GeoIPCommand) Name() string        { return "geoip" }
func (c *GeoIPCommand) Description() string { return "Resolves the country of an IP address" }

func (c *GeoIPCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: trackletctl geoip <ip>")
	}
	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	country := app.Geo.ResolveCountry(ctx, args[0])
	out, err := json.MarshalIndent(map[string]interface{}{
		"ip":   args[0],
		"code": country.Code,
		"name": country.Name,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// SeedCommand populates the DB with sample visits
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample visits" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("visits", 1000, "number of visits to generate")
	baseURL := fs.String("base-url", "https://demo.tracklet.local", "site the seeded pages belong to")
	withGeo := fs.Bool("geo", false, "resolve countries through the configured provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, app.Logger, *count)
	if *withGeo {
		se.Geo = app.Geo
	}

	_, err := se.Run(ctx, *baseURL)
	return err
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: trackletctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
