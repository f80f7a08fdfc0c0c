package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/config"
	"github.com/agentx/aichat/internal/database"
	"github.com/agentx/aichat/internal/providers/factory"
	"github.com/agentx/aichat/internal/services"
)

const usage = `Usage: tools <command> [arguments]

Commands:
  config list               print the global settings
  config get <key>          print one global setting
  config set <key> <value>  change one global setting
  config unset <key>        remove one global setting
  migrate up|down           apply all migrations or roll back the last one
  token <user-id> [role]    mint a host token for local testing
  seal <api-key>            print the sealed form of an API key
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load configuration:", err)
	}

	switch os.Args[1] {
	case "config":
		runConfig(cfg, os.Args[2:])
	case "migrate":
		runMigrate(cfg, os.Args[2:])
	case "token":
		runToken(cfg, os.Args[2:])
	case "seal":
		runSeal(cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func fatal(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

func runConfig(cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal(usage)
	}

	logger := cfg.NewLogger()
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.Database); err != nil {
		fatal("Failed to run migrations:", err)
	}

	providerSet, err := factory.BuildRegistry(cfg, logger)
	if err != nil {
		fatal("Failed to build provider registry:", err)
	}

	ctx := context.Background()
	svc, err := services.NewServices(ctx, db, providerSet, auth.NewKeySealer(cfg.Auth.SealKey), cfg.Server.Language, logger)
	if err != nil {
		fatal("Failed to initialize services:", err)
	}

	switch {
	case args[0] == "list":
		settings, err := svc.Config.GetSettings(ctx)
		if err != nil {
			fatal(err)
		}
		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%-20s %v\n", key, settings[key])
		}

	case args[0] == "get" && len(args) == 2:
		value, err := svc.Config.GetSetting(ctx, args[1])
		if err != nil {
			fatal(err)
		}
		fmt.Println(value)

	case args[0] == "set" && len(args) == 3:
		value, err := services.ParseSetting(args[1], args[2])
		if err != nil {
			fatal(err)
		}
		if err := svc.Config.UpdateSettings(ctx, map[string]interface{}{args[1]: value}); err != nil {
			fatal(err)
		}
		fmt.Printf("%s updated\n", args[1])

	case args[0] == "unset" && len(args) == 2:
		if err := svc.Config.ResetSetting(ctx, args[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("%s removed\n", args[1])

	default:
		fatal(usage)
	}
}

func runMigrate(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(usage)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	switch args[0] {
	case "up":
		err = database.RunMigrations(db, cfg.Database)
	case "down":
		if db.Driver == database.DriverSQLite {
			fatal("sqlite stores have no migration history to roll back")
		}
		err = database.RollbackMigration(cfg.Database)
	default:
		fatal(usage)
	}
	if err != nil {
		fatal(err)
	}
	fmt.Printf("migrate %s done\n", args[0])
}

func runToken(cfg *config.Config, args []string) {
	if len(args) == 0 || len(args) > 2 {
		fatal(usage)
	}
	if cfg.Auth.JWTSecret == "" {
		fatal("auth.jwt_secret is required (or set AICHAT_JWT_SECRET)")
	}

	role := auth.RoleUser
	if len(args) == 2 {
		role = args[1]
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	token, err := jwtService.MintToken(args[0], role, 24*time.Hour)
	if err != nil {
		fatal("Failed to generate token:", err)
	}
	fmt.Println(token)
}

func runSeal(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(usage)
	}

	sealed, err := auth.NewKeySealer(cfg.Auth.SealKey).Seal(args[0])
	if err != nil {
		fatal("Failed to seal key:", err)
	}
	fmt.Println(sealed)
}
