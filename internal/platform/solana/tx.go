package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// systemProgramID is the native program that executes lamport transfers.
const systemProgramID = "11111111111111111111111111111111"

// systemTransferIndex is the System program's transfer instruction tag.
const systemTransferIndex uint32 = 2

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// Instruction is a single program invocation within a transaction.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// Tx is a compiled legacy-format transaction message plus the signer set
// needed to serialize it.
type Tx struct {
	Message    []byte
	signers    []string
	signatures map[string][]byte
}

// appendCompactU16 appends a ShortVec-encoded length.
func appendCompactU16(buf []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(buf, byte(n))
		}
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
}

// decodeAddress decodes a base58 account address into its 32-byte form.
func decodeAddress(addr string) ([]byte, error) {
	raw := base58.Decode(addr)
	if len(raw) != 32 {
		return nil, fmt.Errorf("solana: address %q is not a 32-byte base58 key", addr)
	}
	return raw, nil
}

// SystemTransfer builds the System program transfer instruction.
func SystemTransfer(from, to string, lamports int64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], uint64(lamports))

	return Instruction{
		ProgramID: systemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, Signer: true, Writable: true},
			{Pubkey: to, Signer: false, Writable: true},
		},
		Data: data,
	}
}

// CompileTransaction builds a legacy transaction message with the fee payer
// first, accounts ordered per the wire format (writable signers, readonly
// signers, writable non-signers, readonly non-signers), and the given recent
// blockhash.
func CompileTransaction(feePayer, recentBlockhash string, instrs []Instruction) (*Tx, error) {
	type meta struct {
		signer   bool
		writable bool
	}
	metas := map[string]*meta{
		feePayer: {signer: true, writable: true},
	}
	order := []string{feePayer}

	note := func(key string, signer, writable bool) {
		m, ok := metas[key]
		if !ok {
			m = &meta{}
			metas[key] = m
			order = append(order, key)
		}
		m.signer = m.signer || signer
		m.writable = m.writable || writable
	}

	for _, ins := range instrs {
		for _, acc := range ins.Accounts {
			note(acc.Pubkey, acc.Signer, acc.Writable)
		}
		note(ins.ProgramID, false, false)
	}

	// Partition into the four wire-format classes, preserving first-seen
	// order within each class. The fee payer stays at index 0.
	var wSigners, roSigners, wOthers, roOthers []string
	for _, key := range order {
		m := metas[key]
		switch {
		case m.signer && m.writable:
			wSigners = append(wSigners, key)
		case m.signer:
			roSigners = append(roSigners, key)
		case m.writable:
			wOthers = append(wOthers, key)
		default:
			roOthers = append(roOthers, key)
		}
	}

	keys := make([]string, 0, len(order))
	keys = append(keys, wSigners...)
	keys = append(keys, roSigners...)
	keys = append(keys, wOthers...)
	keys = append(keys, roOthers...)

	index := make(map[string]byte, len(keys))
	for i, k := range keys {
		if i > 255 {
			return nil, fmt.Errorf("solana: too many accounts (%d)", len(keys))
		}
		index[k] = byte(i)
	}

	numSigners := len(wSigners) + len(roSigners)

	var msg []byte
	msg = append(msg, byte(numSigners), byte(len(roSigners)), byte(len(roOthers)))

	msg = appendCompactU16(msg, len(keys))
	for _, k := range keys {
		raw, err := decodeAddress(k)
		if err != nil {
			return nil, err
		}
		msg = append(msg, raw...)
	}

	hash, err := decodeAddress(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("solana: blockhash: %w", err)
	}
	msg = append(msg, hash...)

	msg = appendCompactU16(msg, len(instrs))
	for _, ins := range instrs {
		msg = append(msg, index[ins.ProgramID])
		msg = appendCompactU16(msg, len(ins.Accounts))
		for _, acc := range ins.Accounts {
			msg = append(msg, index[acc.Pubkey])
		}
		msg = appendCompactU16(msg, len(ins.Data))
		msg = append(msg, ins.Data...)
	}

	return &Tx{
		Message:    msg,
		signers:    keys[:numSigners],
		signatures: make(map[string][]byte),
	}, nil
}

// Sign records a signature for one of the transaction's required signers.
func (t *Tx) Sign(key ed25519.PrivateKey) error {
	pub := base58.Encode(key.Public().(ed25519.PublicKey))
	for _, s := range t.signers {
		if s == pub {
			t.signatures[pub] = ed25519.Sign(key, t.Message)
			return nil
		}
	}
	return fmt.Errorf("solana: %s is not a required signer", pub)
}

// Serialize returns the wire-format transaction, base64-encoded. Missing
// signatures are emitted as 64 zero bytes so a partially-signed transaction
// can be handed to the remaining signer.
func (t *Tx) Serialize() string {
	var buf []byte
	buf = appendCompactU16(buf, len(t.signers))
	for _, s := range t.signers {
		sig, ok := t.signatures[s]
		if !ok {
			sig = make([]byte, ed25519.SignatureSize)
		}
		buf = append(buf, sig...)
	}
	buf = append(buf, t.Message...)
	return base64.StdEncoding.EncodeToString(buf)
}

// Signature returns the fee payer's signature in base58, which doubles as
// the transaction's identifier once submitted.
func (t *Tx) Signature() (string, error) {
	if len(t.signers) == 0 {
		return "", fmt.Errorf("solana: transaction has no signers")
	}
	sig, ok := t.signatures[t.signers[0]]
	if !ok {
		return "", fmt.Errorf("solana: fee payer has not signed")
	}
	return base58.Encode(sig), nil
}
