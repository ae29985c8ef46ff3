package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/snapstream/codec"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/kafka/topic"
	"github.com/kbukum/snapstream/stream"
)

type topicFlags struct {
	schema    string
	keyFilter string
	valFilter string
	columns   string
	offset    int64
	limit     int
}

func newTopicCmd(c *cli) *cobra.Command {
	var f topicFlags
	cmd := &cobra.Command{
		Use:   "topic NAME",
		Short: "Read messages from a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopic(cmd.Context(), c, cmd.OutOrStdout(), args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.schema, "schema", "s", "", "path to avro schema file")
	fl.StringVarP(&f.keyFilter, "key-filter", "k", "", "regex used to filter messages by key")
	fl.StringVarP(&f.valFilter, "val-filter", "v", "", "regex used to filter messages by value")
	fl.StringVarP(&f.columns, "columns", "c", "", `columns to extract from each message, ex: "time,date,pk"`)
	fl.Int64VarP(&f.offset, "offset", "o", topic.ReadFromEnd, "offset to start reading from, ex: -2/-1/3025 (start/end/other)")
	fl.IntVarP(&f.limit, "max-messages", "n", 0, "stop after this many messages (0 reads until interrupted)")
	return cmd
}

func runTopic(ctx context.Context, c *cli, out io.Writer, name string, f topicFlags) error {
	app, err := c.newApp()
	if err != nil {
		return err
	}
	ins, err := newInspector(f.keyFilter, f.valFilter, f.columns)
	if err != nil {
		return err
	}
	cfg, err := c.kafkaConfig(name, app.Logger)
	if err != nil {
		return err
	}

	var cdc codec.Codec = codec.Raw()
	if f.schema != "" {
		if cdc, err = codec.LoadAvro(f.schema); err != nil {
			return err
		}
	}

	t := c.newTopic(name,
		topic.WithConfig(cfg),
		topic.WithOffset(f.offset),
		topic.WithCodec(cdc),
		topic.WithLogger(app.Logger),
	)
	kc := c.kafkaComponent(cfg, app.Logger)
	kc.Add(t)
	if err := app.RegisterComponent(kc); err != nil {
		return err
	}

	var src stream.Source[kafka.Message] = t
	if f.limit > 0 {
		src = stream.Limit(src, f.limit)
	}
	e := stream.New(stream.WithName("topic"), stream.WithLogger(app.Logger))
	if _, err := stream.BindNamed(e, "inspect "+name, src, ins.messages(), &printer{w: out}); err != nil {
		return err
	}
	return app.RunEngine(ctx, e)
}
