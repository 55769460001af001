package domain

import "context"

// UnsignedTx is a serialized, base64-encoded transaction awaiting the user's
// signature. The engine persists nothing when handing one out; all store
// mutation happens in the confirm step after the signature lands on-ledger.
type UnsignedTx struct {
	Base64    string `json:"transaction"`
	Blockhash string `json:"blockhash"`
}

// ConfirmationStatus is the polled outcome of a submitted transaction.
type ConfirmationStatus struct {
	Confirmed bool
	Err       string // non-empty when the transaction executed but failed
}

// LedgerClient is the engine's window onto the external chain. Every call is
// a network round-trip; callers must treat failures as "unknown", never as
// success. Holder queries fail closed: an RPC error reports zero holdings.
type LedgerClient interface {
	// BuildTransfer returns an unsigned lamport transfer from one wallet to
	// another for the user to co-sign and submit.
	BuildTransfer(ctx context.Context, from, to string, lamports int64) (UnsignedTx, error)

	// ConfirmSignature polls the status of a submitted transaction, applying
	// a short bounded retry before giving up.
	ConfirmSignature(ctx context.Context, signature string) (ConfirmationStatus, error)

	// CountHoldings returns how many assets of the given collection the
	// wallet holds. Errors are mapped to zero (fail closed) by the caller.
	CountHoldings(ctx context.Context, wallet, collection string) (int, error)
}

// AuthoritySender signs and submits transfers funded by the authority wallet
// (refunds, payouts, reward claims). It returns the transaction signature.
type AuthoritySender interface {
	SendFromAuthority(ctx context.Context, to string, lamports int64) (string, error)
	AuthorityAddress() string
}

// MintBuilder assembles the two-party mint transaction: the user pays the
// mint fee, the authority pre-signs the asset creation, and the new asset
// address is fixed before the user signs. Nothing is persisted until the
// confirm step.
type MintBuilder interface {
	// BuildMint returns the partially-signed transaction and the new asset's
	// address.
	BuildMint(ctx context.Context, payer, name, uri string, feeLamports int64, feeDestination string) (UnsignedTx, string, error)
}

// AssetInfo is the on-chain view of an asset used for join verification.
type AssetInfo struct {
	Address    string
	Owner      string
	Collection string
	Name       string
	URI        string
}

// AssetService performs authority-side custody operations on assets: custody
// transfers during join/settlement and the post-settlement status upgrade.
type AssetService interface {
	FetchAsset(ctx context.Context, address string) (AssetInfo, error)
	// TransferOwnership moves the asset to newOwner using the collection
	// authority's permanent transfer delegate. Returns the tx signature.
	TransferOwnership(ctx context.Context, asset, newOwner string) (string, error)
	// UpdateStatusAttributes rewrites the asset's attribute list (e.g. the
	// "Founder Key" status upgrade after a won auction).
	UpdateStatusAttributes(ctx context.Context, asset string, attrs map[string]string) (string, error)
}
