package messages

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/shruggr/relaynode/kvstore"
)

// FetchTransactionsByTxID fetches the raw bytes of transactions by txid
// from a reconciliation endpoint. It backs peer.Node.WarmCache, which a
// caller invokes ahead of decompression with txids it expects a later
// relay block to reference.
//
// Endpoint: POST {baseURL}/api/v1/txs
// Request body: concatenated 32-byte transaction IDs to fetch.
func FetchTransactionsByTxID(ctx context.Context, baseURL string, txIDs []kvstore.Hash) ([][]byte, error) {
	if len(txIDs) == 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s/api/v1/txs", baseURL)

	requestBody := make([]byte, len(txIDs)*32)
	for i, txid := range txIDs {
		copy(requestBody[i*32:(i+1)*32], txid[:])
	}

	client := &http.Client{
		Timeout: 60 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}

	var txBytes [][]byte

	for {
		tx := &transaction.Transaction{}
		_, err := tx.ReadFrom(resp.Body)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}

		txBytes = append(txBytes, tx.Bytes())
	}

	if len(txBytes) != len(txIDs) {
		return nil, fmt.Errorf("transaction count mismatch: requested %d, received %d", len(txIDs), len(txBytes))
	}

	return txBytes, nil
}
