package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/state"
	"github.com/NethermindEth/committer/core/trie/triedb"
	"github.com/NethermindEth/committer/db"
	"github.com/NethermindEth/committer/db/memory"
	"github.com/NethermindEth/committer/db/pebble"
	"github.com/NethermindEth/committer/utils"
	"github.com/NethermindEth/committer/validator"
	"github.com/sourcegraph/conc"
)

// Config is the top-level committer configuration.
type Config struct {
	LogLevel       utils.LogLevel `yaml:"log-level" mapstructure:"log-level"`
	Colour         bool           `yaml:"colour" mapstructure:"colour"`
	DatabasePath   string         `yaml:"db-path" mapstructure:"db-path"`
	CacheSizeMB    uint           `yaml:"cache-size-mb" mapstructure:"cache-size-mb"`
	TrieCacheSize  int            `yaml:"trie-cache-size" mapstructure:"trie-cache-size" validate:"gte=0"`
	Workers        int            `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
	ClassesHash    string         `yaml:"classes-hash" mapstructure:"classes-hash" validate:"required,hash_fn"`
	CommitmentHash string         `yaml:"commitment-hash" mapstructure:"commitment-hash" validate:"required,hash_fn"`

	Metrics     bool   `yaml:"metrics" mapstructure:"metrics"`
	MetricsHost string `yaml:"metrics-host" mapstructure:"metrics-host" validate:"required_if=Metrics true"`
	MetricsPort uint16 `yaml:"metrics-port" mapstructure:"metrics-port"`
}

type service interface {
	Run(ctx context.Context) error
}

// Node owns the node store and the committer built on it, plus the optional
// services running next to them.
type Node struct {
	cfg       *Config
	db        db.KeyValueStore
	trieDB    *triedb.Database
	committer *state.Committer

	services []service
	cancel   context.CancelFunc
	wg       *conc.WaitGroup
	log      utils.Logger
}

// New validates cfg, opens the database and sets up the committer.
// An empty database path selects an in-memory store.
func New(cfg *Config) (*Node, error) {
	if err := validator.Validator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := utils.NewZapLogger(&cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}

	classesHash, err := crypto.HashByName(cfg.ClassesHash)
	if err != nil {
		return nil, err
	}
	commitmentHash, err := crypto.ArrayHashByName(cfg.CommitmentHash)
	if err != nil {
		return nil, err
	}

	var database db.KeyValueStore
	if cfg.DatabasePath == "" {
		log.Debugw("No database path given, using an in-memory store")
		database = memory.New()
	} else {
		database, err = pebble.New(cfg.DatabasePath, pebble.WithCacheSize(cfg.CacheSizeMB), pebble.WithLogger(cfg.Colour))
		if err != nil {
			return nil, fmt.Errorf("open DB: %w", err)
		}
	}

	trieDB := triedb.New(database, &triedb.Config{CleanCacheSize: cfg.TrieCacheSize}).WithLogger(log)
	committer := state.NewCommitter(trieDB, state.Config{
		Workers:        cfg.Workers,
		ClassesHash:    classesHash,
		CommitmentHash: commitmentHash,
	}, log)

	n := &Node{
		cfg:       cfg,
		db:        database,
		trieDB:    trieDB,
		committer: committer,
		log:       log,
	}

	if cfg.Metrics {
		listener, err := net.Listen("tcp", net.JoinHostPort(cfg.MetricsHost, fmt.Sprint(cfg.MetricsPort)))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("listen on metrics address: %w", err), database.Close())
		}
		n.services = append(n.services, makeMetrics(listener))
		log.Infow("Serving metrics", "addr", listener.Addr().String())
	}
	return n, nil
}

// Start runs the services in the background until ctx is done or Close is
// called.
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.wg = conc.NewWaitGroup()
	for _, s := range n.services {
		n.wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service error", "name", reflect.TypeOf(s), "err", err)
			}
		})
	}
}

// Close stops the services and closes the database.
func (n *Node) Close() error {
	if n.cancel == nil {
		// services release their listeners on shutdown
		n.Start(context.Background())
	}
	n.cancel()
	n.wg.Wait()
	return n.db.Close()
}

func (n *Node) Config() Config {
	return *n.cfg
}

func (n *Node) Committer() *state.Committer {
	return n.committer
}

func (n *Node) TrieDB() *triedb.Database {
	return n.trieDB
}

func (n *Node) Log() utils.Logger {
	return n.log
}
