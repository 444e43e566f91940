package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lazypower/larder/internal/client"
	"github.com/lazypower/larder/internal/engine"
	"github.com/lazypower/larder/internal/feed"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LARDER_"

// Config holds all larder configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kitchen   KitchenConfig
	Feed      FeedConfig
	Challenge ChallengeConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type DatabaseConfig struct {
	Path string // empty resolves to store.DefaultDBPath()
}

// KitchenConfig sizes the storage pools.
type KitchenConfig struct {
	Heater  int
	Cooler  int
	Freezer int
	Shelf   int
}

type FeedConfig struct {
	Rate         time.Duration
	MinPickup    time.Duration
	MaxPickup    time.Duration
	AwaitTimeout time.Duration // zero waits for pickups without a bound
	Seed         uint64
}

// ChallengeConfig locates the challenge server. The token travels as the
// auth query parameter unless AuthHeader or AuthScheme is set. OrdersURL
// and SolveURL override the URLs derived from Endpoint.
type ChallengeConfig struct {
	Endpoint   string
	Auth       string
	AuthHeader string
	AuthScheme string
	OrdersURL  string
	SolveURL   string
	Name       string
	Seed       int64
}

// KafkaConfig enables ledger publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Default returns a Config with sensible defaults.
func Default() Config {
	caps := engine.DefaultCapacities()
	pace := feed.DefaultOptions()
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Kitchen: KitchenConfig{
			Heater:  caps.Heater,
			Cooler:  caps.Cooler,
			Freezer: caps.Freezer,
			Shelf:   caps.Shelf,
		},
		Feed: FeedConfig{
			Rate:         pace.Rate,
			MinPickup:    pace.MinPickup,
			MaxPickup:    pace.MaxPickup,
			AwaitTimeout: pace.AwaitTimeout,
		},
		Challenge: ChallengeConfig{
			Endpoint: client.DefaultEndpoint,
		},
		Kafka: KafkaConfig{
			Topic: "larder.ledger",
		},
	}
}

// Load starts from Default, overlays the dotenv file at envFile if it
// exists, then overlays LARDER_* environment variables. The process
// environment wins over the file. An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	file, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.overlay(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlay(lookup func(string) (string, bool)) error {
	o := overlay{lookup: lookup}

	o.setString("BIND", &c.Server.Bind)
	o.setInt("PORT", &c.Server.Port)
	o.setString("DB", &c.Database.Path)

	o.setInt("HEATER", &c.Kitchen.Heater)
	o.setInt("COOLER", &c.Kitchen.Cooler)
	o.setInt("FREEZER", &c.Kitchen.Freezer)
	o.setInt("SHELF", &c.Kitchen.Shelf)

	o.setDuration("RATE", &c.Feed.Rate)
	o.setDuration("MIN_PICKUP", &c.Feed.MinPickup)
	o.setDuration("MAX_PICKUP", &c.Feed.MaxPickup)
	o.setDuration("AWAIT", &c.Feed.AwaitTimeout)
	o.setUint64("FEED_SEED", &c.Feed.Seed)

	o.setString("ENDPOINT", &c.Challenge.Endpoint)
	o.setString("AUTH", &c.Challenge.Auth)
	o.setString("AUTH_HEADER", &c.Challenge.AuthHeader)
	o.setString("AUTH_SCHEME", &c.Challenge.AuthScheme)
	o.setString("ORDERS_URL", &c.Challenge.OrdersURL)
	o.setString("SOLVE_URL", &c.Challenge.SolveURL)
	o.setString("NAME", &c.Challenge.Name)
	o.setInt64("SEED", &c.Challenge.Seed)

	o.setList("KAFKA_BROKERS", &c.Kafka.Brokers)
	o.setString("KAFKA_TOPIC", &c.Kafka.Topic)

	return o.err
}

// Validate checks the values engine and feeder construction would reject.
func (c *Config) Validate() error {
	if err := c.Capacities().Validate(); err != nil {
		return fmt.Errorf("kitchen: %w", err)
	}
	if err := c.FeedOptions().Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	for _, u := range []struct{ label, raw string }{
		{"endpoint", c.Challenge.Endpoint},
		{"orders url", c.Challenge.OrdersURL},
		{"solve url", c.Challenge.SolveURL},
	} {
		if u.raw == "" {
			continue
		}
		if _, err := client.ParseHTTPURL(u.raw, u.label); err != nil {
			return fmt.Errorf("challenge: %w", err)
		}
	}
	return nil
}

// ClientOptions converts the challenge section for client.New.
func (c *Config) ClientOptions() []client.Option {
	opts := []client.Option{client.WithURLs(c.Challenge.OrdersURL, c.Challenge.SolveURL)}
	if c.Challenge.AuthHeader != "" || c.Challenge.AuthScheme != "" {
		opts = append(opts, client.WithAuthHeader(c.Challenge.AuthHeader, c.Challenge.AuthScheme))
	}
	return opts
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Capacities converts the kitchen section for engine.New.
func (c *Config) Capacities() engine.Capacities {
	return engine.Capacities{
		Heater:  c.Kitchen.Heater,
		Cooler:  c.Kitchen.Cooler,
		Freezer: c.Kitchen.Freezer,
		Shelf:   c.Kitchen.Shelf,
	}
}

// FeedOptions converts the feed section for feed.New.
func (c *Config) FeedOptions() feed.Options {
	return feed.Options{
		Rate:         c.Feed.Rate,
		MinPickup:    c.Feed.MinPickup,
		MaxPickup:    c.Feed.MaxPickup,
		AwaitTimeout: c.Feed.AwaitTimeout,
		Seed:         c.Feed.Seed,
	}
}

// overlay applies string values onto typed fields, keeping the first
// parse error.
type overlay struct {
	lookup func(string) (string, bool)
	err    error
}

func (o *overlay) get(name string) (string, string, bool) {
	key := EnvPrefix + name
	v, ok := o.lookup(key)
	if !ok || o.err != nil {
		return key, "", false
	}
	return key, strings.TrimSpace(v), true
}

func (o *overlay) fail(key, v string, err error) {
	o.err = fmt.Errorf("%s=%q: %w", key, v, err)
}

func (o *overlay) setString(name string, dst *string) {
	if _, v, ok := o.get(name); ok {
		*dst = v
	}
}

func (o *overlay) setInt(name string, dst *int) {
	key, v, ok := o.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = n
}

func (o *overlay) setInt64(name string, dst *int64) {
	key, v, ok := o.get(name)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = n
}

func (o *overlay) setUint64(name string, dst *uint64) {
	key, v, ok := o.get(name)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = n
}

func (o *overlay) setDuration(name string, dst *time.Duration) {
	key, v, ok := o.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = d
}

func (o *overlay) setList(name string, dst *[]string) {
	_, v, ok := o.get(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
