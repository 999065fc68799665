package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Capital CapitalConfig `yaml:"capital"`
	Engine  EngineConfig  `yaml:"engine"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// BotConfig controla el loop principal.
type BotConfig struct {
	Wallets             []string `yaml:"wallets"`
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
	StatusEvery         int      `yaml:"status_every"` // ticks entre prints de estado
}

// CapitalConfig controla el ledger simulado.
type CapitalConfig struct {
	StartingUSDC         float64 `yaml:"starting_usdc"`
	PerMarketCapUSDC     float64 `yaml:"per_market_cap_usdc"`
	MaxConcurrentMarkets int     `yaml:"max_concurrent_markets"`
	MaxDeployedFraction  float64 `yaml:"max_deployed_fraction"`
}

// EngineConfig expone los knobs principales de la estrategia.
// Los que no aparecen aquí usan los defaults del engine.
type EngineConfig struct {
	PerAssetCapUSDC   float64 `yaml:"per_asset_cap_usdc"`
	Aggressiveness    float64 `yaml:"aggressiveness"`
	ArbMaxNotional    float64 `yaml:"arb_max_notional"`
	ArbMinCapital     float64 `yaml:"arb_min_capital"`
	ExpirationWindowS int     `yaml:"expiration_window_seconds"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	DataBase  string `yaml:"data_base"`
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controla dónde se persiste el journal.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if len(cfg.Bot.Wallets) == 0 {
		return nil, fmt.Errorf("config.Load: no wallets configured")
	}

	return &cfg, nil
}

// PollInterval devuelve el intervalo del tick principal como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bot.PollIntervalSeconds) * time.Second
}

// ExpirationWindow devuelve la ventana de expiración del engine.
func (c *Config) ExpirationWindow() time.Duration {
	return time.Duration(c.Engine.ExpirationWindowS) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRROR_WALLETS"); v != "" {
		var wallets []string
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				wallets = append(wallets, w)
			}
		}
		if len(wallets) > 0 {
			cfg.Bot.Wallets = wallets
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Bot.PollIntervalSeconds <= 0 {
		cfg.Bot.PollIntervalSeconds = 5
	}
	if cfg.Bot.StatusEvery <= 0 {
		cfg.Bot.StatusEvery = 12
	}
	if cfg.Capital.StartingUSDC <= 0 {
		cfg.Capital.StartingUSDC = 10000
	}
	if cfg.Capital.PerMarketCapUSDC <= 0 {
		cfg.Capital.PerMarketCapUSDC = 300
	}
	if cfg.Capital.MaxConcurrentMarkets <= 0 {
		cfg.Capital.MaxConcurrentMarkets = 10
	}
	if cfg.Capital.MaxDeployedFraction <= 0 {
		cfg.Capital.MaxDeployedFraction = 0.5
	}
	if cfg.Engine.PerAssetCapUSDC <= 0 {
		cfg.Engine.PerAssetCapUSDC = 300
	}
	if cfg.Engine.Aggressiveness <= 0 {
		cfg.Engine.Aggressiveness = 0.05
	}
	if cfg.Engine.ArbMaxNotional <= 0 {
		cfg.Engine.ArbMaxNotional = 30
	}
	if cfg.Engine.ArbMinCapital <= 0 {
		cfg.Engine.ArbMinCapital = 50
	}
	if cfg.Engine.ExpirationWindowS <= 0 {
		cfg.Engine.ExpirationWindowS = 120
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "mirrorbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
