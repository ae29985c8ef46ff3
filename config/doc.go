// Package config loads process configuration and per-topic connection
// entries.
//
// LoadConfig layers defaults, a YAML file, a .env file and the environment
// with Viper:
//
//	var cfg Config
//	err := config.LoadConfig("snapstream", &cfg, config.WithEnvPrefix("SNAPSTREAM"))
//
// With the SNAPSTREAM prefix, SNAPSTREAM_KAFKA_GROUP_ID overrides
// kafka.group_id.
//
// The entries file (.snapstreamcfg) is a JSON list of
// {"type", "name"|"prefix", "conf"} objects. String values in conf that start
// with "$" are resolved from the environment or from a file of the same name
// under the secrets directory; `\$` escapes a literal dollar.
package config
