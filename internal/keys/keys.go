// Package keys is the crypto provider: Ed25519 keypairs whose public key is
// the agent's address, so any header signature can be verified from the
// declared source alone.
package keys

import (
	"crypto/rand"

	crypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/mr-tron/base58"

	"github.com/samrose/conductor/core/types"
)

// KeyPair holds an agent's signing identity.
type KeyPair struct {
	priv  crypto.PrivKey
	pub   crypto.PubKey
	agent types.Address
}

// Generate creates a fresh Ed25519 keypair.
func Generate() (*KeyPair, error) {
	priv, pub, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeStore, "generating keypair", err)
	}
	return fromKeys(priv, pub)
}

// FromPrivateKeyBytes restores a keypair from its marshaled private key.
func FromPrivateKeyBytes(raw []byte) (*KeyPair, error) {
	priv, err := crypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "unmarshaling private key", err)
	}
	return fromKeys(priv, priv.GetPublic())
}

func fromKeys(priv crypto.PrivKey, pub crypto.PubKey) (*KeyPair, error) {
	pubBytes, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "marshaling public key", err)
	}
	return &KeyPair{
		priv:  priv,
		pub:   pub,
		agent: types.Address(base58.Encode(pubBytes)),
	}, nil
}

// AgentAddress is the base58-encoded public key identifying this agent.
func (k *KeyPair) AgentAddress() types.Address {
	return k.agent
}

// PrivKey exposes the libp2p private key for transport identity reuse.
func (k *KeyPair) PrivKey() crypto.PrivKey {
	return k.priv
}

// MarshalPrivate serializes the private key for persistence.
func (k *KeyPair) MarshalPrivate() ([]byte, error) {
	raw, err := crypto.MarshalPrivateKey(k.priv)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "marshaling private key", err)
	}
	return raw, nil
}

// Sign signs a message and returns the base58-encoded signature.
func (k *KeyPair) Sign(message []byte) (string, error) {
	sig, err := k.priv.Sign(message)
	if err != nil {
		return "", types.WrapError(types.ErrCodeStore, "signing", err)
	}
	return base58.Encode(sig), nil
}

// Verify checks a base58 signature over message against the agent address it
// claims to come from.
func Verify(source types.Address, message []byte, signature string) (bool, error) {
	pubBytes, err := base58.Decode(string(source))
	if err != nil {
		return false, types.WrapError(types.ErrCodeSerialization, "decoding agent address", err)
	}
	pub, err := crypto.UnmarshalPublicKey(pubBytes)
	if err != nil {
		return false, types.WrapError(types.ErrCodeSerialization, "unmarshaling public key", err)
	}
	sig, err := base58.Decode(signature)
	if err != nil {
		return false, types.WrapError(types.ErrCodeSerialization, "decoding signature", err)
	}
	ok, err := pub.Verify(message, sig)
	if err != nil {
		return false, types.WrapError(types.ErrCodeSignatureInvalid, "verifying signature", err)
	}
	return ok, nil
}
