package main

import (
	"context"
	"group-chat/domain"
	"group-chat/internal"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}

func elevatedRoles(roles []string) []domain.Role {
	return lo.FilterMap(roles, func(role string, _ int) (domain.Role, bool) {
		trimmed := strings.TrimSpace(role)
		return domain.Role(trimmed), trimmed != ""
	})
}
