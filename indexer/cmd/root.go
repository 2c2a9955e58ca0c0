package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mikeydub/erc20-holders-indexer/env"
	"github.com/mikeydub/erc20-holders-indexer/indexer"
	"github.com/mikeydub/erc20-holders-indexer/service/logger"
)

// drainTimeout bounds how long the poller manager waits for in-flight batches to finish once a
// shutdown signal arrives, per the concurrency model's graceful-drain requirement.
const drainTimeout = 30 * time.Second

var (
	port      uint64
	once      bool
	manualEnv string
)

func init() {
	cobra.OnInitialize(indexer.SetDefaults)

	rootCmd.PersistentFlags().StringVarP(&manualEnv, "env", "e", "local", "env to run with")
	rootCmd.PersistentFlags().BoolVar(&once, "once", false, "run a single pass over tracked tokens and exit")

	serveCmd.Flags().Uint64VarP(&port, "port", "p", 6000, "port to serve the admin/query HTTP API on")

	rootCmd.AddCommand(liveCmd, backfillCmd, serveCmd)
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Track ERC-20 holder balances across chains",
	Long:  `A multi-chain ERC-20 holder indexer: tails Transfer events, folds them into running balances, and serves ranked holder pages.`,
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Tail confirmed blocks and keep tracked tokens' balances current",
	Args: func(cmd *cobra.Command, args []string) error {
		indexer.LoadConfigFile("indexer", manualEnv)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		runPollers(chainIDsFromEnv(), once)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Drain every tracked token's backlog up to the confirmed tip or CHAIN_POLLER_TARGET",
	Args: func(cmd *cobra.Command, args []string) error {
		indexer.LoadConfigFile("indexer-backfill", manualEnv)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		viper.Set("CHAIN_POLLER_MODE", "backfill")
		runPollers(chainIDsFromEnv(), once)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin reindex and holder query HTTP API",
	Args: func(cmd *cobra.Command, args []string) error {
		indexer.LoadConfigFile("indexer-server", manualEnv)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		boot := indexer.InitAPI(context.Background(), chainIDsFromEnv())
		router := indexer.InitServer(boot)

		logger.For(nil).WithFields(logrus.Fields{"port": port}).Info("starting indexer admin/query server")
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
			logger.For(nil).WithError(err).Fatal("server exited")
		}
	},
}

// runPollers bootstraps a Manager for chainIDs and runs it until SIGINT/SIGTERM, giving it
// drainTimeout to finish in-flight batches before the process exits.
func runPollers(chainIDs []int64, once bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot := indexer.Init(ctx, chainIDs, once || env.GetBool("HOLDERS_INDEXER_ONCE"))
	boot.Manager.Run(ctx, drainTimeout)
}

// chainIDsFromEnv parses INDEXER_CHAINS, a comma-separated list of chain IDs, defaulting to
// Ethereum mainnet alone when unset.
func chainIDsFromEnv() []int64 {
	raw := env.GetString("INDEXER_CHAINS")
	if raw == "" {
		return []int64{1}
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			logger.For(nil).WithError(err).WithField("value", p).Fatal("invalid chain id in INDEXER_CHAINS")
		}
		ids = append(ids, id)
	}
	return ids
}

// Execute runs the root command. A clean return (including shutdown on SIGINT/SIGTERM) exits 0;
// any failure — a bad flag, or a startup panic out of the bootstrap path (unreachable Postgres,
// failed migration, undialable RPC endpoint) — exits 1.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			logger.For(nil).Errorf("unrecoverable startup failure: %v", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
