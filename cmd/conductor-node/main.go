// conductor-node runs a single agent: it loads an identity and a DNA
// manifest, joins the application's network and serves the peer protocol
// until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samrose/conductor/core/cas"
	"github.com/samrose/conductor/core/chain"
	"github.com/samrose/conductor/core/dht"
	"github.com/samrose/conductor/core/instance"
	"github.com/samrose/conductor/core/network"
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/utils"
	"github.com/samrose/conductor/core/workflows"
	"github.com/samrose/conductor/internal/keys"
	"github.com/samrose/conductor/internal/p2p"
)

func main() {
	configPath := flag.String("config", "", "path to node config file")
	flag.Parse()

	config := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			utils.DefaultLogger("conductor").Fatal("loading config", utils.Err(err))
		}
		config = loaded
	}

	logger := utils.NewLogger(utils.LoggerConfig{
		Level:     utils.ParseLevel(config.LogLevel),
		Component: "conductor",
	})

	kp, err := keys.LoadOrCreateIdentity(config.IdentityFile)
	if err != nil {
		logger.Fatal("loading identity", utils.Err(err))
	}
	logger.Info("agent identity", utils.String("agent", string(kp.AgentAddress())))

	dna, err := nucleus.LoadDNA(config.DNAFile)
	if err != nil {
		logger.Fatal("loading DNA manifest", utils.Err(err))
	}
	validator, err := nucleus.NewWasmValidator(dna, logger.Named("nucleus"))
	if err != nil {
		logger.Fatal("compiling zomes", utils.Err(err))
	}

	chainStore := chain.NewStore(cas.NewMemoryContentStore())
	dhtStore := dht.NewStore(cas.NewMemoryContentStore(), cas.NewMemoryEaviStore())
	c := instance.NewContext(kp, chainStore, dhtStore, validator, dna, logger)
	c.NetTimeout = config.NetTimeout()

	transport, err := p2p.New(kp.PrivKey(), config.ListenAddrs, logger.Named("p2p"))
	if err != nil {
		logger.Fatal("starting transport", utils.Err(err))
	}
	for _, peer := range config.BootstrapPeers {
		if err := transport.AddPeer(peer.AgentID, peer.Addr); err != nil {
			logger.Warn("skipping bootstrap peer",
				utils.String("agent", string(peer.AgentID)), utils.Err(err))
		}
	}
	for _, addr := range transport.Addrs() {
		logger.Info("listening", utils.String("addr", addr))
	}

	bridge := network.NewBridge(c, network.DefaultWorkers)
	bridge.Attach(transport)

	ctx := context.Background()
	if err := workflows.Initialize(ctx, c, transport); err != nil {
		logger.Fatal("genesis failed", utils.Err(err))
	}
	logger.Info("node running",
		utils.String("dna", dna.Name),
		utils.String("dna_address", string(dna.Address())))

	shutdown := utils.NewGracefulShutdown(
		time.Duration(config.ShutdownTimeout)*time.Second, logger.Named("shutdown"))
	shutdown.Register(func() error {
		c.Shutdown()
		return nil
	})
	shutdown.Register(func() error {
		bridge.Close()
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	if err := shutdown.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", utils.Err(err))
		os.Exit(1)
	}
}
