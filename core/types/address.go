package types

import (
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// Address is the content address of an entry or header: the base58-encoded
// SHA2-256 multihash of its canonical serialization.
type Address string

// NilAddress is the zero value, used for genesis headers.
const NilAddress Address = ""

// AddressOf hashes raw content into its address.
func AddressOf(content []byte) Address {
	mh, err := multihash.Sum(content, multihash.SHA2_256, -1)
	if err != nil {
		// SHA2_256 is registered statically; Sum only fails on unknown codes.
		panic(err)
	}
	return Address(base58.Encode(mh))
}

// IsNil reports whether the address is unset.
func (a Address) IsNil() bool {
	return a == NilAddress
}

// Valid reports whether the address decodes to a well-formed multihash.
func (a Address) Valid() bool {
	raw, err := base58.Decode(string(a))
	if err != nil {
		return false
	}
	_, err = multihash.Decode(raw)
	return err == nil
}

func (a Address) String() string {
	return string(a)
}
