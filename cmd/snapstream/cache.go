package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/snapstream/bootstrap"
	"github.com/kbukum/snapstream/codec"
	"github.com/kbukum/snapstream/redis"
	"github.com/kbukum/snapstream/stream"
)

type cacheFlags struct {
	keyFilter string
	valFilter string
	columns   string
	stats     bool
	raw       bool
}

func newCacheCmd(c *cli) *cobra.Command {
	var f cacheFlags
	cmd := &cobra.Command{
		Use:   "cache PREFIX",
		Short: "Read records from a cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd.Context(), c, cmd.OutOrStdout(), args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.keyFilter, "key-filter", "k", "", "regex used to filter records by key")
	fl.StringVarP(&f.valFilter, "val-filter", "v", "", "regex used to filter records by value")
	fl.StringVarP(&f.columns, "columns", "c", "", `columns to extract from each record, ex: "time,date,pk"`)
	fl.BoolVar(&f.stats, "stats", false, "print additional cache statistics")
	fl.BoolVar(&f.raw, "raw", false, "print values as stored instead of decoding JSON")
	return cmd
}

func runCache(ctx context.Context, c *cli, out io.Writer, prefix string, f cacheFlags) error {
	app, err := c.newApp()
	if err != nil {
		return err
	}
	ins, err := newInspector(f.keyFilter, f.valFilter, f.columns)
	if err != nil {
		return err
	}
	cfg, err := c.redisConfig(prefix, app.Logger)
	if err != nil {
		return err
	}
	rc := redis.NewComponent(cfg, app.Logger)
	if err := app.RegisterComponent(rc); err != nil {
		return err
	}

	storeOpts := []redis.StoreOption{redis.WithLogger(app.Logger)}
	if f.raw {
		storeOpts = append(storeOpts, redis.WithCodec(codec.Raw()))
	}
	e := stream.New(stream.WithName("cache"), stream.WithLogger(app.Logger))
	var store *redis.Store
	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*Config]) error {
		store = redis.NewStore(rc.Client(), prefix, storeOpts...)
		_, err := stream.BindNamed(e, "inspect "+prefix, store, ins.entries(), &printer{w: out})
		return err
	})

	return app.RunTask(ctx, func(ctx context.Context) error {
		if err := e.Run(ctx); err != nil {
			return err
		}
		if !f.stats {
			return nil
		}
		st, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(st, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "\nStatistics:\n%s\n", data)
		return err
	})
}
