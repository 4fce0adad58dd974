package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ligun0805/eth-rescue/internal/chain"
	"github.com/ligun0805/eth-rescue/internal/logger"
	"github.com/ligun0805/eth-rescue/internal/monitor"
	"github.com/ligun0805/eth-rescue/internal/rescue"
	"github.com/ligun0805/eth-rescue/internal/units"
)

const EnvPrefix = "RESCUE"

var (
	ErrNoConfigFile = errors.New("config file not found")
	ErrNoCredential = errors.New("no mnemonic or private key configured")
)

// Settings keeps all configuration options.
type Settings struct {
	EthNode             string           `mapstructure:"ethNode"`
	Mnemonic            string           `mapstructure:"mnemonic"`
	PrivateKey          string           `mapstructure:"privateKey"`
	Target              common.Address   `mapstructure:"target"`
	GasPrice            *decimal.Decimal `mapstructure:"gasPrice"` // gwei
	SkipFailedTransfers bool             `mapstructure:"skipFailedTransfers"`
	Tokens              []Token          `mapstructure:"tokens"`
	Log                 logger.Config    `mapstructure:"log"`
	Metrics             monitor.Config   `mapstructure:"metrics"`
	RPC                 RPCConfig        `mapstructure:"rpc"`
}

type Token struct {
	Addr     common.Address  `mapstructure:"addr"`
	Amount   decimal.Decimal `mapstructure:"amount"`
	Symbol   string          `mapstructure:"symbol"`
	Decimals *int32          `mapstructure:"decimals"` // nil means 18
}

type RPCConfig struct {
	RateLimit    float64       `mapstructure:"rateLimit"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	GasBufferPct int64         `mapstructure:"gasBufferPct"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ethNode", "")
	v.SetDefault("mnemonic", "")
	v.SetDefault("privateKey", "")
	v.SetDefault("target", "")
	v.SetDefault("gasPrice", nil)
	v.SetDefault("skipFailedTransfers", false)
	v.SetDefault("tokens", []interface{}{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("metrics.enable", false)
	v.SetDefault("metrics.addr", ":9105")
	v.SetDefault("rpc.rateLimit", 0)
	v.SetDefault("rpc.dialTimeout", "10s")
	v.SetDefault("rpc.gasBufferPct", 5)
}

// Load reads the YAML file at path, applies RESCUE_* environment overrides and validates the result.
func Load(path string) (*Settings, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoConfigFile, path)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	st := &Settings{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			toDecimalHookFunc(),
			toAddressHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           st,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}

func toDecimalHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			d, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("failed to parse decimal %q: %w", v, err)
			}
			return d, nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case uint64:
			return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
		}
		return data, nil
	}
}

func toAddressHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(common.Address{}) || f.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return common.Address{}, nil
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("bad address %q", s)
		}
		return common.HexToAddress(s), nil
	}
}

// Validate checks the fields every run needs. Credentials are checked separately
// because the CLI may prompt for a key.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.EthNode) == "" {
		return errors.New("ethNode is empty")
	}
	if s.Target == (common.Address{}) {
		return errors.New("target address is empty")
	}
	if s.GasPrice != nil && !s.GasPrice.IsPositive() {
		return fmt.Errorf("gasPrice must be positive, got %s", s.GasPrice)
	}
	for i, t := range s.Tokens {
		if t.Addr == (common.Address{}) {
			return fmt.Errorf("tokens[%d]: empty address", i)
		}
		if t.Amount.IsNegative() {
			return fmt.Errorf("tokens[%d]: negative amount %s", i, t.Amount)
		}
		if t.Decimals != nil && (*t.Decimals < 0 || *t.Decimals > 77) {
			return fmt.Errorf("tokens[%d]: bad decimals %d", i, *t.Decimals)
		}
	}
	return nil
}

// CheckCredential returns ErrNoCredential when neither a mnemonic nor a private key is set.
func (s *Settings) CheckCredential() error {
	if strings.TrimSpace(s.Mnemonic) == "" && strings.TrimSpace(s.PrivateKey) == "" {
		return ErrNoCredential
	}
	return nil
}

// GasPriceWei returns the configured gas price in wei, or nil when none is set.
func (s *Settings) GasPriceWei() (*big.Int, error) {
	if s.GasPrice == nil {
		return nil, nil
	}
	return units.GweiToWei(*s.GasPrice)
}

// Transfers converts the configured tokens into base-unit transfers to the target.
func (s *Settings) Transfers() ([]rescue.TokenTransfer, error) {
	out := make([]rescue.TokenTransfer, 0, len(s.Tokens))
	for i, t := range s.Tokens {
		dec := int32(units.EtherDecimals)
		if t.Decimals != nil {
			dec = *t.Decimals
		}
		amount, err := units.ToBaseUnits(t.Amount, dec)
		if err != nil {
			return nil, fmt.Errorf("tokens[%d] %s: %w", i, t.Addr.Hex(), err)
		}
		sym := t.Symbol
		if sym == "" {
			sym = t.Addr.Hex()[:10]
		}
		out = append(out, rescue.TokenTransfer{Token: t.Addr, To: s.Target, Amount: amount, Symbol: sym})
	}
	return out, nil
}

func (s *Settings) ChainOptions() chain.Options {
	return chain.Options{
		RateLimit:    s.RPC.RateLimit,
		DialTimeout:  s.RPC.DialTimeout,
		GasBufferPct: s.RPC.GasBufferPct,
	}
}

func (s *Settings) FailurePolicy() rescue.FailurePolicy {
	if s.SkipFailedTransfers {
		return rescue.FailedResolved
	}
	return rescue.FailedPending
}
