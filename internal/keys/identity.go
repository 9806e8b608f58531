package keys

import (
	"encoding/json"
	"os"

	"github.com/samrose/conductor/core/types"
)

// PersistentIdentity is the on-disk form of a node identity.
type PersistentIdentity struct {
	PrivKey []byte        `json:"priv_key"`
	Agent   types.Address `json:"agent"`
}

// SaveIdentity writes the keypair to path with owner-only permissions.
func SaveIdentity(path string, kp *KeyPair) error {
	raw, err := kp.MarshalPrivate()
	if err != nil {
		return err
	}
	data, err := json.Marshal(PersistentIdentity{PrivKey: raw, Agent: kp.AgentAddress()})
	if err != nil {
		return types.WrapError(types.ErrCodeSerialization, "marshaling identity", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadIdentity reads a keypair previously written by SaveIdentity.
func LoadIdentity(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var id PersistentIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, types.WrapError(types.ErrCodeSerialization, "unmarshaling identity", err)
	}
	return FromPrivateKeyBytes(id.PrivKey)
}

// LoadOrCreateIdentity loads the identity at path, generating and persisting
// a fresh one if none exists.
func LoadOrCreateIdentity(path string) (*KeyPair, error) {
	if kp, err := LoadIdentity(path); err == nil {
		return kp, nil
	}
	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := SaveIdentity(path, kp); err != nil {
		return nil, err
	}
	return kp, nil
}
