package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	dir      string
	embedded bool
	name     string
	version  string
}

// offline commands never open a database connection.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return fmt.Errorf("-name is required")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	},
}

var online = map[string]func(context.Context, *sql.DB, migrate.Source, options) error{
	"up":     goose("up"),
	"down":   goose("down"),
	"status": goose("status"),
	"redo":   goose("redo"),
	"version": func(ctx context.Context, pool *sql.DB, src migrate.Source, o options) error {
		if o.version == "" {
			return fmt.Errorf("-version is required")
		}
		return migrate.MigrateToVersion(ctx, pool, src, o.version)
	},
}

func goose(command string) func(context.Context, *sql.DB, migrate.Source, options) error {
	return func(ctx context.Context, pool *sql.DB, src migrate.Source, _ options) error {
		return migrate.Run(ctx, pool, src, command)
	}
}

func commandNames() string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	cmd := flag.String("cmd", "up", "one of "+commandNames())
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory")
	flag.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if run, ok := offline[*cmd]; ok {
		exitOn(run(opts), *cmd)
		return
	}
	run, ok := online[*cmd]
	if !ok {
		exitOn(fmt.Errorf("unknown command, want %s", commandNames()), *cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "config invalid", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer client.Close()
	pool, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "sql handle unavailable", err)
		os.Exit(1)
	}

	src := migrate.DirSource(opts.dir)
	if opts.embedded {
		src = migrate.EmbeddedSource()
	}
	if err := run(ctx, pool, src, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		client.Close()
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}

func exitOn(err error, cmd string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "migrate %s: %v\n", cmd, err)
	os.Exit(1)
}
