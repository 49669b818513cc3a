package config

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted in StoreDriver.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all configurable game and server parameters.
type Config struct {
	HandSize          int `json:"hand_size" yaml:"hand_size"`
	StarterBonusCards int `json:"starter_bonus_cards" yaml:"starter_bonus_cards"`
	SpecialRoundDraw  int `json:"special_round_draw" yaml:"special_round_draw"`
	// MaxHandSize is the Special mode hand limit; a player above it must discard.
	MaxHandSize        int `json:"max_hand_size" yaml:"max_hand_size"`
	DiscardCount       int `json:"discard_count" yaml:"discard_count"`
	MinPlayers         int `json:"min_players" yaml:"min_players"`
	MaxPlayers         int `json:"max_players" yaml:"max_players"`
	TotalRounds        int `json:"total_rounds" yaml:"total_rounds"`
	SpecialTargetScore int `json:"special_target_score" yaml:"special_target_score"`
	MaxNameLength      int `json:"max_name_length" yaml:"max_name_length"`
	TxMaxRetries       int `json:"tx_max_retries" yaml:"tx_max_retries"`

	// AllowedSpecialCards is the default special pool for new games (rank codes: CL, SB, SH, DE, GA).
	AllowedSpecialCards []string `json:"allowed_special_cards" yaml:"allowed_special_cards"`

	Port        int    `json:"port" yaml:"port"`
	StoreDriver string `json:"store_driver" yaml:"store_driver"`
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path"`
	AuthBaseURL string `json:"auth_base_url" yaml:"auth_base_url"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		HandSize:            5,
		StarterBonusCards:   1,
		SpecialRoundDraw:    3,
		MaxHandSize:         10,
		DiscardCount:        3,
		MinPlayers:          2,
		MaxPlayers:          6,
		TotalRounds:         5,
		SpecialTargetScore:  3000,
		MaxNameLength:       24,
		TxMaxRetries:        5,
		AllowedSpecialCards: []string{"CL", "SB", "SH", "DE", "GA"},
		Port:                8080,
		StoreDriver:         StoreMemory,
		SQLitePath:          "equation-game.db",
		LogLevel:            "info",
	}
}

// Files read by Load, first match wins.
var configFiles = []string{"config.json", "config.yaml", "config.yml"}

// Load reads configuration from an optional config.json (or config.yaml)
// file, then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	for _, name := range configFiles {
		err := LoadFile(cfg, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Printf("Warning: failed to parse %s: %v", name, err)
		}
		break
	}

	overrideInt(&cfg.HandSize, "HAND_SIZE")
	overrideInt(&cfg.StarterBonusCards, "STARTER_BONUS_CARDS")
	overrideInt(&cfg.SpecialRoundDraw, "SPECIAL_ROUND_DRAW")
	overrideInt(&cfg.MaxHandSize, "MAX_HAND_SIZE")
	overrideInt(&cfg.DiscardCount, "DISCARD_COUNT")
	overrideInt(&cfg.MinPlayers, "MIN_PLAYERS")
	overrideInt(&cfg.MaxPlayers, "MAX_PLAYERS")
	overrideInt(&cfg.TotalRounds, "TOTAL_ROUNDS")
	overrideInt(&cfg.SpecialTargetScore, "SPECIAL_TARGET_SCORE")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.TxMaxRetries, "TX_MAX_RETRIES")
	overrideList(&cfg.AllowedSpecialCards, "ALLOWED_SPECIAL_CARDS")
	overrideInt(&cfg.Port, "PORT")
	overrideString(&cfg.StoreDriver, "STORE_DRIVER")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.SQLitePath, "SQLITE_PATH")
	overrideString(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")

	if cfg.MaxPlayers < cfg.MinPlayers {
		log.Printf("Warning: MAX_PLAYERS (%d) below MIN_PLAYERS (%d); using %d", cfg.MaxPlayers, cfg.MinPlayers, cfg.MinPlayers)
		cfg.MaxPlayers = cfg.MinPlayers
	}
	if cfg.MaxHandSize > 0 && cfg.MaxHandSize < cfg.DiscardCount {
		log.Printf("Warning: MAX_HAND_SIZE (%d) below DISCARD_COUNT (%d); using %d", cfg.MaxHandSize, cfg.DiscardCount, cfg.DiscardCount)
		cfg.MaxHandSize = cfg.DiscardCount
	}

	return cfg
}

// LoadFile decodes the JSON or YAML file at path into cfg. The format
// follows the extension.
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(cfg)
	default:
		err = json.NewDecoder(f).Decode(cfg)
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// overrideList reads a comma-separated list, e.g. ALLOWED_SPECIAL_CARDS=CL,SB.
func overrideList(field *[]string, envKey string) {
	val, ok := os.LookupEnv(envKey)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	*field = out
}
