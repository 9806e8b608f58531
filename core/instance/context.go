package instance

import (
	"time"

	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/protocol"
	"github.com/samrose/conductor/core/state"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
	"github.com/samrose/conductor/internal/keys"
)

// DefaultNetTimeout bounds a single remote request, validation package
// fetches included.
const DefaultNetTimeout = 10 * time.Second

// Context is the capability registry a running application hands to its
// workflows and host functions: identity, stores, validator, DNA and the
// instance whose state they act on.
type Context struct {
	Keys       *keys.KeyPair
	ChainStore *chain.Store
	DhtStore   *dht.Store
	Validator  nucleus.Validator
	DNA        *nucleus.DNA
	Logger     *utils.Logger
	NetTimeout time.Duration

	instance *Instance
}

// NewContext builds a context and the instance it governs, starting the
// reduction loop. The chain is assumed empty; replay is the caller's concern.
func NewContext(kp *keys.KeyPair, chainStore *chain.Store, dhtStore *dht.Store, validator nucleus.Validator, dna *nucleus.DNA, logger *utils.Logger) *Context {
	if logger == nil {
		logger = utils.DefaultLogger("conductor")
	}
	c := &Context{
		Keys:       kp,
		ChainStore: chainStore,
		DhtStore:   dhtStore,
		Validator:  validator,
		DNA:        dna,
		Logger:     logger,
		NetTimeout: DefaultNetTimeout,
	}
	initial := state.NewState(chainStore, dhtStore, kp.AgentAddress(), logger)
	c.instance = New(initial, logger.Named("instance"))
	c.instance.Start()
	return c
}

// Instance returns the running instance.
func (c *Context) Instance() *Instance {
	return c.instance
}

// State returns the current snapshot.
func (c *Context) State() *state.State {
	return c.instance.State()
}

// AgentID is this node's agent address.
func (c *Context) AgentID() types.Address {
	return c.Keys.AgentAddress()
}

// Transport returns the network transport, nil before InitNetwork.
func (c *Context) Transport() protocol.Transport {
	return c.State().Network().Transport()
}

// NewSignedHeader builds a chain header for an entry on top of the current
// chain and signs it with this node's key.
func (c *Context) NewSignedHeader(entry types.Entry) (types.ChainHeader, error) {
	header := types.NewChainHeader(entry, c.State().Agent().TopHeader(), time.Now().Unix())
	sig, err := c.Keys.Sign(header.SigningBytes())
	if err != nil {
		return types.ChainHeader{}, types.WrapError(types.ErrCodeSignatureInvalid, "signing chain header", err)
	}
	header.Provenances = []types.Provenance{{Source: c.AgentID(), Signature: sig}}
	return header, nil
}

// Shutdown stops the reduction loop and closes the transport if one was
// initialized.
func (c *Context) Shutdown() {
	if t := c.Transport(); t != nil {
		if err := t.Close(); err != nil {
			c.Logger.Warn("closing transport", utils.Err(err))
		}
	}
	c.instance.Stop()
}
