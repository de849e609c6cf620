package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shruggr/relaynode/kvstore"
	"github.com/shruggr/relaynode/metadata"
)

// Store is a SQLite-backed implementation of metadata.Store.
type Store struct {
	db *sql.DB
}

// Config holds configuration for SQLite.
type Config struct {
	DBPath string // Path to SQLite database file
}

// New creates a new SQLite-backed metadata store.
func New(config *Config) (*Store, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("DBPath is required")
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blocks (
		height       INTEGER PRIMARY KEY,
		block_hash   BLOB NOT NULL,
		merkle_root  BLOB NOT NULL,
		tx_count     INTEGER NOT NULL,
		relay_bytes  INTEGER NOT NULL,
		created_at   INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_hash ON blocks(block_hash);
	`

	_, err := s.db.Exec(schema)
	return err
}

// PutBlock stores block metadata, replacing any existing row at that height.
func (s *Store) PutBlock(ctx context.Context, block *metadata.BlockMeta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blocks (height, block_hash, merkle_root, tx_count, relay_bytes)
		 VALUES (?, ?, ?, ?, ?)`,
		block.Height, block.BlockHash[:], block.MerkleRoot[:], block.TxCount, block.RelayBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

func scanBlockMeta(row *sql.Row) (*metadata.BlockMeta, error) {
	var meta metadata.BlockMeta
	var blockHash, merkleRoot []byte

	err := row.Scan(&meta.Height, &blockHash, &merkleRoot, &meta.TxCount, &meta.RelayBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	copy(meta.BlockHash[:], blockHash)
	copy(meta.MerkleRoot[:], merkleRoot)

	return &meta, nil
}

// GetBlock retrieves block metadata by height.
func (s *Store) GetBlock(ctx context.Context, height uint64) (*metadata.BlockMeta, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT height, block_hash, merkle_root, tx_count, relay_bytes FROM blocks WHERE height = ?`,
		height,
	)
	meta, err := scanBlockMeta(row)
	if err != nil {
		return nil, fmt.Errorf("failed to query block: %w", err)
	}
	return meta, nil
}

// GetBlockByHash retrieves block metadata by block hash.
func (s *Store) GetBlockByHash(ctx context.Context, blockHash kvstore.Hash) (*metadata.BlockMeta, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT height, block_hash, merkle_root, tx_count, relay_bytes FROM blocks WHERE block_hash = ?`,
		blockHash[:],
	)
	meta, err := scanBlockMeta(row)
	if err != nil {
		return nil, fmt.Errorf("failed to query block by hash: %w", err)
	}
	return meta, nil
}

// DeleteBlock removes block metadata for a height.
func (s *Store) DeleteBlock(ctx context.Context, height uint64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE height = ?`, height)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	return nil
}

// GetLatestBlock returns the highest block height stored.
func (s *Store) GetLatestBlock(ctx context.Context) (*metadata.BlockMeta, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT height, block_hash, merkle_root, tx_count, relay_bytes FROM blocks ORDER BY height DESC LIMIT 1`,
	)
	meta, err := scanBlockMeta(row)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest block: %w", err)
	}
	return meta, nil
}

// Close releases all database resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
