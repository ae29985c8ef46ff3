package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/snapstream/bootstrap"
	"github.com/kbukum/snapstream/codec"
	apperrors "github.com/kbukum/snapstream/errors"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/kafka/topic"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/redis"
	"github.com/kbukum/snapstream/resilience"
	"github.com/kbukum/snapstream/stream"
)

type mirrorFlags struct {
	to          string
	cache       string
	keyFilter   string
	valFilter   string
	offset      int64
	limit       int
	dryRun      bool
	partitions  int
	replication int
	rate        float64
}

func newMirrorCmd(c *cli) *cobra.Command {
	var f mirrorFlags
	cmd := &cobra.Command{
		Use:   "mirror SRC --to DST",
		Short: "Copy messages from one topic to another, optionally caching them by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(cmd.Context(), c, cmd.OutOrStdout(), args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.to, "to", "", "destination topic")
	fl.StringVar(&f.cache, "cache", "", "also store every mirrored message under this cache prefix")
	fl.StringVarP(&f.keyFilter, "key-filter", "k", "", "regex used to filter messages by key")
	fl.StringVarP(&f.valFilter, "val-filter", "v", "", "regex used to filter messages by value")
	fl.Int64VarP(&f.offset, "offset", "o", topic.ReadFromEnd, "offset to start reading from, ex: -2/-1/3025 (start/end/other)")
	fl.IntVarP(&f.limit, "max-messages", "n", 0, "stop after reading this many messages (0 runs until interrupted)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "read and filter but do not produce")
	fl.IntVar(&f.partitions, "partitions", 0, "create the destination topic with this many partitions first")
	fl.IntVar(&f.replication, "replication", 1, "replication factor used with --partitions")
	fl.Float64Var(&f.rate, "rate", 0, "maximum messages mirrored per second (0 is unlimited)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runMirror(ctx context.Context, c *cli, out io.Writer, src string, f mirrorFlags) error {
	if src == f.to {
		return apperrors.InvalidInput("to", "source and destination topics must differ")
	}
	app, err := c.newApp()
	if err != nil {
		return err
	}
	ins, err := newInspector(f.keyFilter, f.valFilter, "")
	if err != nil {
		return err
	}
	srcCfg, err := c.kafkaConfig(src, app.Logger)
	if err != nil {
		return err
	}
	dstCfg, err := c.kafkaConfig(f.to, app.Logger)
	if err != nil {
		return err
	}

	in := c.newTopic(src,
		topic.WithConfig(srcCfg),
		topic.WithOffset(f.offset),
		topic.WithCodec(codec.Raw()),
		topic.WithLogger(app.Logger),
	)
	dst := c.newTopic(f.to,
		topic.WithConfig(dstCfg),
		topic.WithCodec(codec.Raw()),
		topic.WithDryRun(f.dryRun),
		topic.WithLogger(app.Logger),
	)
	kc := c.kafkaComponent(srcCfg, app.Logger)
	kc.Add(in)
	kc.Add(dst)
	if err := app.RegisterComponent(kc); err != nil {
		return err
	}

	var rc *redis.Component
	if f.cache != "" {
		rcfg, err := c.redisConfig(f.cache, app.Logger)
		if err != nil {
			return err
		}
		rc = redis.NewComponent(rcfg, app.Logger)
		if err := app.RegisterComponent(rc); err != nil {
			return err
		}
	}

	if f.partitions > 0 {
		app.OnStart(func(ctx context.Context) error {
			return dst.CreateTopic(ctx, f.partitions, f.replication)
		})
	}

	var source stream.Source[kafka.Message] = in
	if f.limit > 0 {
		source = stream.Limit(source, f.limit)
	}
	e := stream.New(stream.WithName("mirror"), stream.WithLogger(app.Logger))
	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*Config]) error {
		sinks := []any{dst}
		if rc != nil {
			sinks = append(sinks, redis.NewStore(rc.Client(), f.cache,
				redis.WithCodec(codec.Raw()), redis.WithLogger(a.Logger)))
		}
		rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "mirror", Rate: f.rate})
		_, err := stream.BindNamed(e, src+" -> "+f.to, source, mirrorHandler(ins, rl), sinks...)
		return err
	})

	err = app.RunEngine(ctx, e)
	for _, r := range e.Results() {
		app.Logger.Info("Mirror finished", logger.Fields(
			"binding", r.Binding.String(),
			"outcome", string(r.Outcome),
			"read", r.Items,
			"mirrored", r.Outputs,
		))
	}
	return err
}

// mirrorHandler passes messages that match the filters on as key/value
// pairs, so keyed sinks keep the source key.
func mirrorHandler(ins *inspector, rl *resilience.RateLimiter) stream.Handler[kafka.Message, stream.KV[any]] {
	return stream.MapOptional(func(ctx context.Context, m kafka.Message) (stream.KV[any], bool, error) {
		ok, err := ins.match(fromMessage(m))
		if err != nil || !ok {
			return stream.KV[any]{}, false, err
		}
		if err := rl.Wait(ctx); err != nil {
			return stream.KV[any]{}, false, err
		}
		return stream.KV[any]{Key: m.Key, Value: m.Value}, true, nil
	})
}
