package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CATALOG_"

type Config struct {
	Server ServerConfig `koanf:"server"`
	Mongo  MongoConfig  `koanf:"mongo"`
	Log    LogConfig    `koanf:"log"`
}

type ServerConfig struct {
	Port     string        `koanf:"port"`
	Mode     string        `koanf:"mode"`
	Origins  string        `koanf:"origins"`
	Shutdown time.Duration `koanf:"shutdown"`
}

type MongoConfig struct {
	URI          string        `koanf:"uri"`
	Database     string        `koanf:"database"`
	Collection   string        `koanf:"collection"`
	Timeout      time.Duration `koanf:"timeout"`
	UniqueUPC    bool          `koanf:"uniqueupc"`
	HistoryDedup bool          `koanf:"historydedup"`
}

type LogConfig struct {
	Level    string `koanf:"level"`
	Encoding string `koanf:"encoding"`
}

var defaults = map[string]any{
	"server.port":        "8080",
	"server.mode":        "release",
	"server.origins":     "*",
	"server.shutdown":    "10s",
	"mongo.database":     "productCatalog",
	"mongo.collection":   "products",
	"mongo.timeout":      "10s",
	"mongo.uniqueupc":    true,
	"mongo.historydedup": false,
	"log.level":          "info",
	"log.encoding":       "json",
}

// legacyEnv mapea los nombres de variables de despliegues anteriores a claves de config.
// Si están ambas, MONGO_URI pisa a MONGODB_CONN_STRING.
var legacyEnv = []struct {
	name string
	key  string
}{
	{"PORT", "server.port"},
	{"MONGODB_CONN_STRING", "mongo.uri"},
	{"MONGO_URI", "mongo.uri"},
	{"MONGO_DB", "mongo.database"},
}

// LoadConfig carga la configuración por capas: defaults, archivo YAML, .env,
// variables heredadas y por último CATALOG_<SECCION>_<CLAVE>.
func LoadConfig() (*Config, error) {
	configFile := getEnv(envPrefix+"CONFIG", "config.yaml")
	return Load(configFile, ".env")
}

func Load(configFile, dotenvFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	// Solo cargar .env en desarrollo local; no pisa variables ya definidas
	if _, err := os.Stat(dotenvFile); err == nil {
		if err := godotenv.Load(dotenvFile); err != nil {
			log.Println("error loading .env file:", err)
		}
	}

	legacy := make(map[string]any)
	for _, e := range legacyEnv {
		if value := getEnv(e.name, ""); value != "" {
			legacy[e.key] = value
		}
	}
	if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey convierte CATALOG_MONGO_URI en mongo.uri; los nombres sin sección (CATALOG_CONFIG) se ignoran
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	if !strings.Contains(key, "_") {
		return ""
	}
	return strings.Replace(key, "_", ".", 1)
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required (MONGODB_CONN_STRING or CATALOG_MONGO_URI)")
	}
	if c.Mongo.Database == "" || c.Mongo.Collection == "" {
		return errors.New("mongo.database and mongo.collection must not be empty")
	}
	if c.Server.Port == "" {
		return errors.New("server.port must not be empty")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q must be debug, release or test", c.Server.Mode)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding %q must be json or console", c.Log.Encoding)
	}
	return nil
}

// AllowedOrigins separa server.origins por comas
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
