package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kbukum/snapstream/bootstrap"
	"github.com/kbukum/snapstream/config"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/kafka/topic"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/redis"
	"github.com/kbukum/snapstream/version"
)

const serviceName = "snapstream"

// Config is the process configuration. Connection settings live in the
// entries file, not here.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
}

// cli carries global flags and the seams tests use to inject fakes.
type cli struct {
	configPath  string
	secretsBase string
	verbose     bool

	log       *logger.Logger
	topicOpts []topic.Option
	pinger    kafka.Pinger
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Inspect and mirror Kafka topics and Redis caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Short(),
	}
	cmd.PersistentFlags().StringVar(&c.configPath, "config-path", "~",
		"directory containing the "+config.EntriesFileName+" entries file")
	cmd.PersistentFlags().StringVar(&c.secretsBase, "secrets-base-path", "",
		"directory containing secret files for $VAR references")
	cmd.PersistentFlags().BoolVar(&c.verbose, "verbose", false,
		"debug logging and startup summary on stderr")

	cmd.AddCommand(newTopicCmd(c), newCacheCmd(c), newMirrorCmd(c), newVersionCmd())
	return cmd
}

func (c *cli) newApp() (*bootstrap.App[*Config], error) {
	opts := []config.LoaderOption{
		config.WithEnvPrefix("SNAPSTREAM"),
		config.WithDefault("name", serviceName),
		config.WithDefault("version", version.Short()),
		config.WithDefault("logging.level", "warn"),
	}
	if dir, err := os.UserConfigDir(); err == nil {
		opts = append(opts, config.WithSearchDirs(filepath.Join(dir, serviceName)))
	}

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}

	var appOpts []bootstrap.Option
	if !c.verbose {
		appOpts = append(appOpts, bootstrap.WithoutSummary())
	}
	if c.log != nil {
		appOpts = append(appOpts, bootstrap.WithLogger(c.log))
	}
	return bootstrap.NewApp(&cfg, appOpts...)
}

// entry returns the entry for id, creating a default one when missing.
func (c *cli) entry(typ, id string, log *logger.Logger) (config.Entry, error) {
	path, err := config.EntriesPath(c.configPath)
	if err != nil {
		return config.Entry{}, err
	}
	entries, err := config.LoadEntries(path)
	if err != nil {
		return config.Entry{}, err
	}
	e, created, err := entries.Ensure(typ, id)
	if err != nil {
		return config.Entry{}, err
	}
	if created {
		log.Warn("Created default entry", logger.Fields("type", typ, "id", id, "path", path))
	}
	return e, nil
}

func (c *cli) kafkaConfig(name string, log *logger.Logger) (kafka.Config, error) {
	var cfg kafka.Config
	e, err := c.entry(config.EntryTopic, name, log)
	if err != nil {
		return cfg, err
	}
	err = e.Decode(&cfg, c.secretsBase)
	return cfg, err
}

func (c *cli) redisConfig(prefix string, log *logger.Logger) (redis.Config, error) {
	var cfg redis.Config
	e, err := c.entry(config.EntryCache, prefix, log)
	if err != nil {
		return cfg, err
	}
	err = e.Decode(&cfg, c.secretsBase)
	return cfg, err
}

func (c *cli) kafkaComponent(cfg kafka.Config, log *logger.Logger) *kafka.Component {
	kc := kafka.NewComponent(cfg, log)
	if c.pinger != nil {
		kc.SetPinger(c.pinger)
	}
	return kc
}

func (c *cli) newTopic(name string, opts ...topic.Option) *topic.Topic {
	return topic.New(name, append(opts, c.topicOpts...)...)
}
