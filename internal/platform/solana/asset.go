package solana

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/vaultline/artkey/internal/domain"
)

// coreProgramID is the Metaplex Core program that owns the assets.
const coreProgramID = "CoREENxT6tW1HoK8ypY1SxRMZTcVPm7R94rH4PZNhX7d"

// Core instruction discriminators.
const (
	coreCreateV1       byte = 0
	coreTransferV1     byte = 14
	coreUpdatePluginV1 byte = 6
)

// attributesPluginIndex is the Attributes variant tag in the Core plugin enum.
const attributesPluginIndex byte = 6

// AssetClient performs authority-side custody operations on Core assets.
type AssetClient struct {
	rpc        *RPCClient
	signer     *AuthoritySigner
	collection string
	logger     *slog.Logger
}

// NewAssetClient creates an AssetClient bound to the art collection.
func NewAssetClient(rpc *RPCClient, signer *AuthoritySigner, collection string, logger *slog.Logger) *AssetClient {
	return &AssetClient{
		rpc:        rpc,
		signer:     signer,
		collection: collection,
		logger:     logger.With(slog.String("component", "asset_client")),
	}
}

// FetchAsset reads an asset's on-chain view via the DAS getAsset index.
func (ac *AssetClient) FetchAsset(ctx context.Context, address string) (domain.AssetInfo, error) {
	var result struct {
		Content struct {
			JSONURI  string `json:"json_uri"`
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
		} `json:"content"`
		Ownership struct {
			Owner string `json:"owner"`
		} `json:"ownership"`
		Grouping []struct {
			GroupKey   string `json:"group_key"`
			GroupValue string `json:"group_value"`
		} `json:"grouping"`
	}

	params := map[string]any{"id": address}
	if err := ac.rpc.call(ctx, "getAsset", params, &result); err != nil {
		return domain.AssetInfo{}, fmt.Errorf("solana: fetch asset %s: %w", address, err)
	}

	info := domain.AssetInfo{
		Address: address,
		Owner:   result.Ownership.Owner,
		Name:    result.Content.Metadata.Name,
		URI:     result.Content.JSONURI,
	}
	for _, g := range result.Grouping {
		if g.GroupKey == "collection" {
			info.Collection = g.GroupValue
		}
	}
	return info, nil
}

// BuildMint assembles the two-party mint transaction: a mint-fee transfer
// paid by the user plus a Core asset creation into the collection, owned by
// the payer. The asset keypair and the authority pre-sign; the user signs
// last as fee payer. Returns the unsigned tx and the new asset's address.
func (ac *AssetClient) BuildMint(ctx context.Context, payer, name, uri string, feeLamports int64, feeDestination string) (domain.UnsignedTx, string, error) {
	assetPub, assetKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.UnsignedTx{}, "", fmt.Errorf("solana: generate asset key: %w", err)
	}
	assetAddr := base58.Encode(assetPub)
	authority := ac.signer.AuthorityAddress()

	// CreateV1 data: discriminator, data state (account), name, uri, no
	// plugin list.
	data := []byte{coreCreateV1, 0}
	data = appendBorshString(data, name)
	data = appendBorshString(data, uri)
	data = append(data, 0)

	create := Instruction{
		ProgramID: coreProgramID,
		Accounts: []AccountMeta{
			{Pubkey: assetAddr, Signer: true, Writable: true},
			{Pubkey: ac.collection, Writable: true},
			{Pubkey: authority, Signer: true},
			{Pubkey: payer, Signer: true, Writable: true},
			{Pubkey: payer},
			{Pubkey: systemProgramID},
		},
		Data: data,
	}

	blockhash, err := ac.rpc.LatestBlockhash(ctx)
	if err != nil {
		return domain.UnsignedTx{}, "", err
	}

	tx, err := CompileTransaction(payer, blockhash, []Instruction{
		SystemTransfer(payer, feeDestination, feeLamports),
		create,
	})
	if err != nil {
		return domain.UnsignedTx{}, "", err
	}
	if err := tx.Sign(assetKey); err != nil {
		return domain.UnsignedTx{}, "", err
	}
	if err := ac.signer.sign(tx); err != nil {
		return domain.UnsignedTx{}, "", err
	}

	return domain.UnsignedTx{Base64: tx.Serialize(), Blockhash: blockhash}, assetAddr, nil
}

// TransferOwnership moves the asset to newOwner using the collection
// authority's permanent transfer delegate. Returns the tx signature.
func (ac *AssetClient) TransferOwnership(ctx context.Context, asset, newOwner string) (string, error) {
	authority := ac.signer.AuthorityAddress()

	// TransferV1 data: discriminator + compression proof Option tag (None).
	data := []byte{coreTransferV1, 0}

	ins := Instruction{
		ProgramID: coreProgramID,
		Accounts: []AccountMeta{
			{Pubkey: asset, Writable: true},
			{Pubkey: ac.collection, Writable: true},
			{Pubkey: authority, Signer: true, Writable: true},
			{Pubkey: authority, Signer: true},
			{Pubkey: newOwner},
			{Pubkey: systemProgramID},
		},
		Data: data,
	}

	sig, err := ac.signer.signAndSend(ctx, []Instruction{ins})
	if err != nil {
		return "", fmt.Errorf("solana: transfer asset %s: %w", asset, err)
	}

	ac.logger.Info("asset transferred",
		slog.String("asset", asset),
		slog.String("new_owner", newOwner),
		slog.String("signature", sig))
	return sig, nil
}

// UpdateStatusAttributes rewrites the asset's attribute plugin, used for the
// status upgrade after a won auction.
func (ac *AssetClient) UpdateStatusAttributes(ctx context.Context, asset string, attrs map[string]string) (string, error) {
	authority := ac.signer.AuthorityAddress()

	data := []byte{coreUpdatePluginV1}
	data = append(data, encodeAttributesPlugin(attrs)...)

	ins := Instruction{
		ProgramID: coreProgramID,
		Accounts: []AccountMeta{
			{Pubkey: asset, Writable: true},
			{Pubkey: ac.collection, Writable: true},
			{Pubkey: authority, Signer: true, Writable: true},
			{Pubkey: authority, Signer: true},
			{Pubkey: systemProgramID},
		},
		Data: data,
	}

	sig, err := ac.signer.signAndSend(ctx, []Instruction{ins})
	if err != nil {
		return "", fmt.Errorf("solana: update attributes %s: %w", asset, err)
	}

	ac.logger.Info("asset attributes updated",
		slog.String("asset", asset),
		slog.String("signature", sig))
	return sig, nil
}

// encodeAttributesPlugin borsh-encodes the Attributes plugin variant: the
// enum tag followed by a vec of (key, value) string pairs. Keys are sorted
// for a deterministic payload.
func encodeAttributesPlugin(attrs map[string]string) []byte {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte{attributesPluginIndex}
	out = appendU32(out, uint32(len(keys)))
	for _, k := range keys {
		out = appendBorshString(out, k)
		out = appendBorshString(out, attrs[k])
	}
	return out
}

func appendU32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendBorshString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Compile-time interface checks.
var (
	_ domain.AssetService = (*AssetClient)(nil)
	_ domain.MintBuilder  = (*AssetClient)(nil)
)
