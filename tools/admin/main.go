package main

import (
	"context"
	"errors"
	"fmt"
	"group-chat/auth"
	"group-chat/domain"
	"group-chat/infrastructure/storage"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Config is read from the same variables as the gateway. The gateway must be stopped while
// seeding since Badger holds an exclusive lock on its directory.
type Config struct {
	BadgerFilepath    string        `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	JwtSecret         string        `envconfig:"JWT_SECRET"`
	AuthTokenDuration time.Duration `envconfig:"AUTH_TOKEN_DURATION" default:"24h"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"WARN"`
}

const usage = `Usage:
  admin adduser <userId> <name> [role]
  admin token <userId>
  admin invite <groupId> <userId>`

var errUsage = errors.New(usage)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprint(err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if len(args) == 0 {
		return errUsage
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer func() { _ = db.Close() }()

	return execute(context.Background(), db, config, log, args, out)
}

func execute(ctx context.Context, db *badger.DB, config Config, log *slog.Logger, args []string, out io.Writer) error {
	users := storage.NewUserRepository(db, log)

	switch args[0] {
	case "adduser":
		if len(args) < 3 || len(args) > 4 {
			return errUsage
		}
		role := domain.RoleUser
		if len(args) == 4 {
			role = domain.Role(args[3])
		}
		user := domain.User{ID: domain.UserID(args[1]), Name: args[2], Role: role, CreatedAt: time.Now().UTC()}
		if err := users.CreateUser(ctx, user); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, color.Green.Sprintf("User %s created with role %s", user.ID, user.Role))
		return nil

	case "token":
		if len(args) != 2 {
			return errUsage
		}
		if config.JwtSecret == "" {
			return errors.New("JWT_SECRET is required to sign tokens")
		}
		user, err := users.GetUser(ctx, domain.UserID(args[1]))
		if err != nil {
			return err
		}
		token, err := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration).GenerateToken(user.ID, user.Role)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, token)
		return nil

	case "invite":
		if len(args) != 3 {
			return errUsage
		}
		groups, err := storage.NewGroupRepository(db, log, nil)
		if err != nil {
			return err
		}
		defer func() { _ = groups.Close() }()
		group, err := groups.InviteUser(ctx, domain.GroupID(args[1]), domain.UserID(args[2]))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, color.Green.Sprintf("%s invited to %s (%s)", args[2], group.Name, group.ID))
		return nil
	}
	return errUsage
}
