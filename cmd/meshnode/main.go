// Command meshnode runs one participant of the replicated ledger mesh:
// it listens for peer connections, gossips transactions, runs VRF leader
// election, and mines and commits blocks under quorum vote.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/meshchain/meshchain/log"
	"github.com/meshchain/meshchain/node"
)

var logger = log.NewModuleLogger(log.CmdNode)

var (
	hostFlag = cli.StringFlag{
		Name:  "host",
		Usage: "address to listen on",
		Value: "127.0.0.1",
	}
	portFlag = cli.IntFlag{
		Name:  "port",
		Usage: "port to listen on",
		Value: 5000,
	}
	peersFlag = cli.StringFlag{
		Name:  "peers",
		Usage: "comma-separated seed peer host:port list",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "meshnode"
	app.Usage = "a peer-to-peer replicated ledger node"
	app.Flags = []cli.Flag{hostFlag, portFlag, peersFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Error("meshnode exited with error", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	defer log.Sync()

	cfg := node.Config{
		Host:      c.String(hostFlag.Name),
		Port:      c.Int(portFlag.Name),
		SeedPeers: parsePeers(c.String(peersFlag.Name)),
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting meshnode", "address", cfg.Address(), "seed_peers", cfg.SeedPeers)
	return n.Run(ctx)
}

func parsePeers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	peers := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		peers = append(peers, p)
	}
	return peers
}
