package configure

import (
	"fmt"
	"strings"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/joho/godotenv"
	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type ServerCfg struct {
	Level           string        `mapstructure:"level"`
	ConfigFile      string        `mapstructure:"config_file"`
	ListenerNetwork string        `mapstructure:"listener_network"`
	ListenerAddress string        `mapstructure:"listener_address"`
	Storage         string        `mapstructure:"storage"`
	MongoURI        string        `mapstructure:"mongo_uri"`
	MongoDB         string        `mapstructure:"mongo_db"`
	RedisURI        string        `mapstructure:"redis_uri"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	VoteCooldown    time.Duration `mapstructure:"vote_cooldown"`
	AdminEmail      string        `mapstructure:"admin_email"`
	AdminPassword   string        `mapstructure:"admin_password"`
	AdminName       string        `mapstructure:"admin_name"`
	ExitCode        int           `mapstructure:"exit_code"`
}

func initLog(level string) {
	if l, err := log.ParseLevel(level); err == nil {
		log.SetLevel(l)
	}
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "category"},
	})
}

func flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("api", pflag.ContinueOnError)
	fs.String("config_file", "config.yaml", "configure filename")
	fs.String("level", "info", "Log level")
	fs.String("listener_network", "tcp", "Network type for the http listener.")
	fs.String("listener_address", ":3000", "Address for the http listener.")
	fs.String("storage", StorageMongo, "Storage backend, mongo or memory.")
	fs.String("mongo_uri", "mongodb://localhost:27017", "Address for the mongodb server.")
	fs.String("mongo_db", "collections", "Database for the mongodb connection.")
	fs.String("redis_uri", "", "Address for the redis server, empty disables caching.")
	fs.Duration("cache_ttl", 6*time.Hour, "How long cached collections live.")
	fs.String("jwt_secret", "", "Secret used to sign session tokens.")
	fs.Duration("token_ttl", 24*time.Hour, "Lifetime of a session token.")
	fs.Int("bcrypt_cost", 10, "bcrypt cost for password hashes.")
	fs.Duration("vote_cooldown", 24*time.Hour, "Minimum time between two votes of a user on a poll.")
	fs.String("admin_email", "", "Email of the admin account seeded at startup.")
	fs.String("admin_password", "", "Password of the admin account seeded at startup.")
	fs.String("admin_name", "admin", "Display name of the admin account seeded at startup.")
	fs.Int("exit_code", 0, "Status code for successful and graceful shutdown, [0-125].")
	return fs
}

// Load builds the configuration from, lowest precedence first, flag
// defaults, the config file, the environment (a .env file included) and
// args.
func Load(args []string) (*ServerCfg, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("dotenv, err=%v", err)
	}

	config := viper.New()

	// Flags
	fs := flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.BindPFlags(fs); err != nil {
		return nil, err
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	config.SetEnvKeyReplacer(replacer)
	config.AllowEmptyEnv(true)
	config.AutomaticEnv()

	// File
	config.SetConfigFile(config.GetString("config_file"))
	config.AddConfigPath(".")
	if err := config.ReadInConfig(); err != nil {
		log.Warning(err)
		log.Info("Using default config")
	}

	c := &ServerCfg{}
	if err := config.Unmarshal(c); err != nil {
		return nil, err
	}

	// Log
	initLog(c.Level)

	if err := c.validate(); err != nil {
		return nil, err
	}

	// Print final config
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c.redacted()))

	return c, nil
}

func (c *ServerCfg) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}
	if c.Storage != StorageMongo && c.Storage != StorageMemory {
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.VoteCooldown < 0 {
		return fmt.Errorf("vote_cooldown must not be negative")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("admin_email and admin_password must be set together")
	}
	return nil
}

func (c ServerCfg) redacted() ServerCfg {
	if c.JWTSecret != "" {
		c.JWTSecret = "<redacted>"
	}
	if c.AdminPassword != "" {
		c.AdminPassword = "<redacted>"
	}
	return c
}
