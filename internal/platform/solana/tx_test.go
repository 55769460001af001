package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAddr(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub), priv
}

func TestAppendCompactU16(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, appendCompactU16(nil, tt.n), "n=%d", tt.n)
	}
}

func TestSystemTransferData(t *testing.T) {
	from, _ := newAddr(t)
	to, _ := newAddr(t)

	ins := SystemTransfer(from, to, 1_500_000)

	require.Len(t, ins.Data, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ins.Data[0:4]))
	assert.Equal(t, uint64(1_500_000), binary.LittleEndian.Uint64(ins.Data[4:12]))
	assert.True(t, ins.Accounts[0].Signer)
	assert.True(t, ins.Accounts[0].Writable)
	assert.False(t, ins.Accounts[1].Signer)
}

func TestCompileTransferMessage(t *testing.T) {
	from, key := newAddr(t)
	to, _ := newAddr(t)
	blockhash, _ := newAddr(t)

	tx, err := CompileTransaction(from, blockhash, []Instruction{
		SystemTransfer(from, to, 42),
	})
	require.NoError(t, err)

	// Header: 1 required signature, 0 readonly signers, 1 readonly unsigned
	// (the System program).
	require.GreaterOrEqual(t, len(tx.Message), 3)
	assert.Equal(t, byte(1), tx.Message[0])
	assert.Equal(t, byte(0), tx.Message[1])
	assert.Equal(t, byte(1), tx.Message[2])

	// 3 account keys: fee payer, recipient, System program.
	assert.Equal(t, byte(3), tx.Message[3])
	assert.Equal(t, from, base58.Encode(tx.Message[4:36]))
	assert.Equal(t, to, base58.Encode(tx.Message[36:68]))
	assert.Equal(t, systemProgramID, base58.Encode(tx.Message[68:100]))

	// Unsigned serialization carries one zeroed signature slot.
	raw, err := base64.StdEncoding.DecodeString(tx.Serialize())
	require.NoError(t, err)
	assert.Equal(t, byte(1), raw[0])
	assert.Equal(t, make([]byte, ed25519.SignatureSize), raw[1:65])

	// Signing fills the slot and the message verifies against the fee payer.
	require.NoError(t, tx.Sign(key))
	raw, err = base64.StdEncoding.DecodeString(tx.Serialize())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), raw[65:], raw[1:65]))

	sig, err := tx.Signature()
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(raw[1:65]), sig)
}

func TestSignRejectsNonSigner(t *testing.T) {
	from, _ := newAddr(t)
	to, _ := newAddr(t)
	blockhash, _ := newAddr(t)
	_, stranger := newAddr(t)

	tx, err := CompileTransaction(from, blockhash, []Instruction{
		SystemTransfer(from, to, 1),
	})
	require.NoError(t, err)
	assert.Error(t, tx.Sign(stranger))
}

func TestEncodeAttributesPluginDeterministic(t *testing.T) {
	a := encodeAttributesPlugin(map[string]string{"status": "Founder Key", "epoch": "7"})
	b := encodeAttributesPlugin(map[string]string{"epoch": "7", "status": "Founder Key"})
	assert.Equal(t, a, b)
	assert.Equal(t, attributesPluginIndex, a[0])
	// Two pairs follow the tag.
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(a[1:5]))
}
