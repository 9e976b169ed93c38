// Command makeadmin promotes an existing user to the admin role.
//
//	makeadmin <email>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"authmedia/internal/cache"
	"authmedia/internal/config"
	"authmedia/internal/db"
	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/media"
	"authmedia/internal/repository"
	"authmedia/internal/service"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: makeadmin <email>")
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1]); err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			fmt.Fprintf(os.Stderr, "no user with email %s\n", os.Args[1])
		} else {
			fmt.Fprintf(os.Stderr, "makeadmin: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, email string) error {
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.IsProduction())

	gormDB, err := db.OpenAndMigrate(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer func() { _ = db.Close(gormDB) }()

	processor, err := media.NewProcessor(cfg.StorageDir, 1, logger)
	if err != nil {
		return fmt.Errorf("media storage: %w", err)
	}
	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()

	admins := service.NewAdminService(repository.NewStore(gormDB), processor, cacheClient, logger)
	user, err := admins.MakeAdmin(ctx, email)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s) is now an admin\n", user.Email, user.ID)
	return nil
}
