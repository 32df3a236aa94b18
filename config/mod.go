// Package config resolves the identity of the operator and the network from
// the environment, optionally completed by a YAML file.
//
// The environment variables are:
//
//	OPERATOR_ID          account paying for the requests, as shard.realm.num
//	OPERATOR_KEY         hex encoded Ed25519 private key of the operator
//	HEDERA_NETWORK       testnet or mainnet
//	MAX_TRANSACTION_FEE  maximum fee of a transaction in hbar (default 6)
//	MAX_QUERY_PAYMENT    maximum payment of a query in hbar (default 3)
//	REQUEST_TIMEOUT      deadline of a request, as a Go duration (default 30s)
//
// A variable that is set in the environment overrides the value of the file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/crypto/ed25519"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Names of the environment variables.
const (
	EnvOperatorID        = "OPERATOR_ID"
	EnvOperatorKey       = "OPERATOR_KEY"
	EnvNetwork           = "HEDERA_NETWORK"
	EnvMaxTransactionFee = "MAX_TRANSACTION_FEE"
	EnvMaxQueryPayment   = "MAX_QUERY_PAYMENT"
	EnvRequestTimeout    = "REQUEST_TIMEOUT"
)

var (
	// DefaultMaxTransactionFee is the maximum fee of a transaction when none
	// is configured.
	DefaultMaxTransactionFee = ledger.Hbar(6)

	// DefaultMaxQueryPayment is the maximum payment of a query when none is
	// configured.
	DefaultMaxQueryPayment = ledger.Hbar(3)

	// DefaultRequestTimeout is the deadline of a request when none is
	// configured.
	DefaultRequestTimeout = 30 * time.Second
)

// Config is the resolved configuration of the client.
type Config struct {
	OperatorID        ledger.AccountID
	OperatorKey       ed25519.Signer
	Network           ledger.Network
	MaxTransactionFee ledger.Amount
	MaxQueryPayment   ledger.Amount
	RequestTimeout    time.Duration
}

// HasOperatorKey returns true if a key was provided.
func (c Config) HasOperatorKey() bool {
	return c.OperatorKey != (ed25519.Signer{})
}

// file is the layout of the YAML file. Every field is optional.
type file struct {
	OperatorID        string `yaml:"operatorId"`
	OperatorKey       string `yaml:"operatorKey"`
	Network           string `yaml:"network"`
	MaxTransactionFee string `yaml:"maxTransactionFee"`
	MaxQueryPayment   string `yaml:"maxQueryPayment"`
	RequestTimeout    string `yaml:"requestTimeout"`
}

// Getenv is the function used to read the environment.
type Getenv func(key string) string

// FromEnv returns the configuration defined by the environment variables.
func FromEnv() (Config, error) {
	return resolve(file{}, os.Getenv)
}

// Load reads the YAML file at the path and returns the configuration, where the
// environment variables take precedence.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to read config: %v", err)
	}

	return Parse(data, os.Getenv)
}

// Parse returns the configuration of the YAML document completed by the
// environment.
func Parse(data []byte, getenv Getenv) (Config, error) {
	var f file

	err := yaml.UnmarshalStrict(data, &f)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to decode config: %v", err)
	}

	return resolve(f, getenv)
}

func resolve(f file, getenv Getenv) (Config, error) {
	override(&f.OperatorID, getenv(EnvOperatorID))
	override(&f.OperatorKey, getenv(EnvOperatorKey))
	override(&f.Network, getenv(EnvNetwork))
	override(&f.MaxTransactionFee, getenv(EnvMaxTransactionFee))
	override(&f.MaxQueryPayment, getenv(EnvMaxQueryPayment))
	override(&f.RequestTimeout, getenv(EnvRequestTimeout))

	cfg := Config{
		MaxTransactionFee: DefaultMaxTransactionFee,
		MaxQueryPayment:   DefaultMaxQueryPayment,
		RequestTimeout:    DefaultRequestTimeout,
	}

	var err error

	if f.OperatorID == "" {
		return cfg, xerrors.Errorf("%s is missing: %w", EnvOperatorID, ledger.ErrInvalidArgument)
	}

	cfg.OperatorID, err = ledger.ParseAccountID(f.OperatorID)
	if err != nil {
		return cfg, xerrors.Errorf("%s: %w", EnvOperatorID, err)
	}

	if f.OperatorKey != "" {
		cfg.OperatorKey, err = ed25519.NewSignerFromText(f.OperatorKey)
		if err != nil {
			return cfg, xerrors.Errorf("%s: %v: %w", EnvOperatorKey, err, ledger.ErrInvalidArgument)
		}
	}

	if f.Network == "" {
		return cfg, xerrors.Errorf("%s is missing: %w", EnvNetwork, ledger.ErrInvalidArgument)
	}

	cfg.Network, err = ledger.ParseNetwork(f.Network)
	if err != nil {
		return cfg, xerrors.Errorf("%s: %w", EnvNetwork, err)
	}

	if f.MaxTransactionFee != "" {
		cfg.MaxTransactionFee, err = ledger.ParseHbar(f.MaxTransactionFee)
		if err != nil {
			return cfg, xerrors.Errorf("%s: %w", EnvMaxTransactionFee, err)
		}
	}

	if f.MaxQueryPayment != "" {
		cfg.MaxQueryPayment, err = ledger.ParseHbar(f.MaxQueryPayment)
		if err != nil {
			return cfg, xerrors.Errorf("%s: %w", EnvMaxQueryPayment, err)
		}
	}

	if f.RequestTimeout != "" {
		cfg.RequestTimeout, err = time.ParseDuration(f.RequestTimeout)
		if err != nil || cfg.RequestTimeout <= 0 {
			return cfg, xerrors.Errorf("%s: invalid duration '%s': %w",
				EnvRequestTimeout, f.RequestTimeout, ledger.ErrInvalidArgument)
		}
	}

	return cfg, nil
}

func override(field *string, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		*field = value
	}
}
