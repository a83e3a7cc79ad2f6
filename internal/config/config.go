// Package config loads lottery.conf and applies BLOCKCHAIN_*/SERVER_*/APP_*
// environment variable overrides on top of it.
package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Blockchain holds the chain-facing settings.
type Blockchain struct {
	RPCURL          string  `json:"rpc_url"`
	ChainID         int64   `json:"chain_id"`
	ContractAddress string  `json:"contract_address"`
	OperatorAddress string  `json:"operator_address"`
	ABIPath         string  `json:"abi_path"`
	GasPriceGwei    *int64  `json:"gas_price"`
	GasMultiplier   float64 `json:"gas_multiplier"`
}

// Server holds the gateway bind settings.
type Server struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Operator holds the passive operator's tunables.
type Operator struct {
	TxTimeoutSeconds int `json:"tx_timeout_seconds"`
}

// EventManager holds the three polling loops' tunables.
type EventManager struct {
	ContractConfigIntervalSec      int `json:"contract_config_interval_sec"`
	RoundAndParticipantsIntervalSec int `json:"round_and_participants_interval_sec"`
	StartBlockOffset               int `json:"start_block_offset"`
	LiveFeedMaxEntries             int `json:"live_feed_max_entries"`
	RoundHistoryMax                int `json:"round_history_max"`
}

// Config is the full lottery.conf shape.
type Config struct {
	Blockchain   Blockchain   `json:"blockchain"`
	Server       Server       `json:"server"`
	Operator     Operator     `json:"operator"`
	EventManager EventManager `json:"event_manager"`
}

func defaults() Config {
	return Config{
		Blockchain: Blockchain{
			ABIPath:       "./abi/lottery.json",
			GasMultiplier: 1.15,
		},
		Server: Server{Host: "0.0.0.0", Port: 8080},
		Operator: Operator{TxTimeoutSeconds: 180},
		EventManager: EventManager{
			ContractConfigIntervalSec:       10,
			RoundAndParticipantsIntervalSec: 2,
			StartBlockOffset:                500,
			LiveFeedMaxEntries:              1000,
			RoundHistoryMax:                 100,
		},
	}
}

// Load reads lottery.conf from path, applies defaults for absent fields,
// then overlays BLOCKCHAIN_*/SERVER_*/APP_* environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.Blockchain.RPCURL == "" {
		return nil, fmt.Errorf("config: blockchain.rpc_url is required")
	}
	if cfg.Blockchain.ContractAddress == "" {
		return nil, fmt.Errorf("config: blockchain.contract_address is required")
	}
	return &cfg, nil
}

// applyEnvOverrides walks the small, fixed set of recognized environment
// variables rather than reflecting over struct tags — the variable-to-field
// mapping is irregular enough (three prefixes covering four JSON sections)
// that an explicit table is clearer than a generic tag-driven walk.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLOCKCHAIN_RPC_URL"); v != "" {
		cfg.Blockchain.RPCURL = v
	}
	if v := os.Getenv("BLOCKCHAIN_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Blockchain.ChainID = n
		}
	}
	if v := os.Getenv("BLOCKCHAIN_CONTRACT_ADDRESS"); v != "" {
		cfg.Blockchain.ContractAddress = v
	}
	if v := os.Getenv("BLOCKCHAIN_OPERATOR_ADDRESS"); v != "" {
		cfg.Blockchain.OperatorAddress = v
	}
	if v := os.Getenv("BLOCKCHAIN_GAS_PRICE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Blockchain.GasPriceGwei = &n
		}
	}
	if v := os.Getenv("BLOCKCHAIN_GAS_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Blockchain.GasMultiplier = f
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("APP_OPERATOR_TX_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Operator.TxTimeoutSeconds = n
		}
	}
	if v := os.Getenv("APP_EVENT_MANAGER_START_BLOCK_OFFSET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventManager.StartBlockOffset = n
		}
	}
	if v := os.Getenv("APP_EVENT_MANAGER_LIVE_FEED_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventManager.LiveFeedMaxEntries = n
		}
	}
	if v := os.Getenv("APP_EVENT_MANAGER_ROUND_HISTORY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventManager.RoundHistoryMax = n
		}
	}
}

// ContractAddressParsed parses the configured contract address.
func (c *Config) ContractAddressParsed() common.Address {
	return common.HexToAddress(c.Blockchain.ContractAddress)
}

// OperatorAddressParsed parses the configured expected operator address.
func (c *Config) OperatorAddressParsed() common.Address {
	return common.HexToAddress(c.Blockchain.OperatorAddress)
}

// ChainIDBig returns the chain id as a *big.Int for signer construction.
func (c *Config) ChainIDBig() *big.Int {
	return big.NewInt(c.Blockchain.ChainID)
}

// GasPriceWei converts the optional gwei override into wei, or nil.
func (c *Config) GasPriceWei() *big.Int {
	if c.Blockchain.GasPriceGwei == nil {
		return nil
	}
	gwei := big.NewInt(*c.Blockchain.GasPriceGwei)
	return new(big.Int).Mul(gwei, big.NewInt(1_000_000_000))
}
