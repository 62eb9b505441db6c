package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used for balance snapshots.
type RPCClient interface {
	// GetBalance retrieves the native balance of a wallet in lamports.
	GetBalance(ctx context.Context, wallet string) (uint64, error)

	// GetTokenAccountsByOwner retrieves every SPL token balance of a wallet.
	GetTokenAccountsByOwner(ctx context.Context, wallet string) ([]TokenAccountBalance, error)
}
