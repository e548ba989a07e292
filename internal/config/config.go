package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Store holds everything needed to reach the relational store.
type Store struct {
	Driver         string
	Address        string
	Database       string
	User           string
	Password       string
	TLS            string
	ConnectTimeout time.Duration
	SuggestRoutine string
	Path           string
}

// Config is resolved once at startup and passed by value afterwards.
type Config struct {
	Store      Store
	HTTPAddr   string
	GRPCAddr   string
	RedisAddr  string
	AuthSecret string
	TokenTTL   time.Duration
}

var defaults = map[string]any{
	"store.driver":          DriverMySQL,
	"store.address":         "localhost:3306",
	"store.database":        "farmacia3h",
	"store.user":            "root",
	"store.password":        "",
	"store.tls":             "false",
	"store.connect_timeout": "5s",
	"store.suggest_routine": "sp_suggest_products",
	"store.path":            "farmacia3h.db",
	"http.addr":             ":8080",
	"grpc.addr":             ":50051",
	"redis.addr":            "",
	"auth.secret":           "dev_secret",
	"auth.token_ttl":        "12h",
}

// Load reads .env (if present), the optional config file and FARMACIA_* environment
// variables, in increasing order of precedence.
func Load(file string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("FARMACIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Store: Store{
			Driver:         strings.ToLower(v.GetString("store.driver")),
			Address:        v.GetString("store.address"),
			Database:       v.GetString("store.database"),
			User:           v.GetString("store.user"),
			Password:       v.GetString("store.password"),
			TLS:            v.GetString("store.tls"),
			ConnectTimeout: v.GetDuration("store.connect_timeout"),
			SuggestRoutine: v.GetString("store.suggest_routine"),
			Path:           v.GetString("store.path"),
		},
		HTTPAddr:   v.GetString("http.addr"),
		GRPCAddr:   v.GetString("grpc.addr"),
		RedisAddr:  v.GetString("redis.addr"),
		AuthSecret: v.GetString("auth.secret"),
		TokenTTL:   v.GetDuration("auth.token_ttl"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.ConnectTimeout <= 0 {
		return fmt.Errorf("store connect timeout must be positive")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	return nil
}

// DSN renders the driver-level connection string.
func (s Store) DSN() string {
	if s.Driver == DriverSQLite {
		return "file:" + s.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	mc := mysql.NewConfig()
	mc.User = s.User
	mc.Passwd = s.Password
	mc.Net = "tcp"
	mc.Addr = s.Address
	mc.DBName = s.Database
	mc.ParseTime = true
	mc.Timeout = s.ConnectTimeout
	mc.TLSConfig = s.TLS
	return mc.FormatDSN()
}
