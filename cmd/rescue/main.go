package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ligun0805/eth-rescue/internal/chain"
	"github.com/ligun0805/eth-rescue/internal/config"
	"github.com/ligun0805/eth-rescue/internal/logger"
	"github.com/ligun0805/eth-rescue/internal/monitor"
	"github.com/ligun0805/eth-rescue/internal/rescue"
	"github.com/ligun0805/eth-rescue/internal/units"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <config.yaml> [gasPriceGwei]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	preflight := flag.Bool("preflight", true, "Check configured tokens for pauses and reverting transfers before arming")
	accountIndex := flag.Uint("account-index", 0, "Account index on m/44'/60'/0'/0 when a mnemonic is configured")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return 1
	}
	st, err := config.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	transfers, err := st.Transfers()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	tl, err := logger.NewLogger("rescue", st.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer func() { _ = tl.Sync() }()

	w, err := loadWallet(st, uint32(*accountIndex))
	if err != nil {
		tl.Error("credential", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.Dial(ctx, st.EthNode, w, st.ChainOptions(), tl)
	if err != nil {
		tl.Error("connect", zap.String("node", maskHex(st.EthNode)), zap.Error(err))
		return 1
	}
	defer client.Close()

	suggested, err := client.SuggestGasPrice(ctx)
	if err != nil {
		tl.Warn("node gas price unavailable", zap.Error(err))
		suggested = nil
	}
	gasPrice, err := resolveGasPrice(flag.Arg(1), st, suggested)
	if err != nil {
		tl.Error("gas price", zap.Error(err))
		return 1
	}

	balance, err := client.BalanceAt(ctx, w.Address())
	if err != nil {
		tl.Error("initial balance", zap.String("address", w.Address().Hex()), zap.Error(err))
		return 1
	}

	fields := []zap.Field{
		zap.String("address", w.Address().Hex()),
		zap.String("node", maskHex(st.EthNode)),
		zap.String("chain_id", client.ChainID().String()),
		zap.String("target", st.Target.Hex()),
		zap.String("balance_eth", units.FormatEther(balance)),
		zap.String("gas_price_gwei", units.FormatGwei(gasPrice)),
		zap.Int("tokens", len(transfers)),
	}
	if suggested != nil {
		fields = append(fields, zap.String("node_gas_price_gwei", units.FormatGwei(suggested)))
	}
	tl.Info("rescue configured", fields...)

	if *preflight {
		runPreflight(ctx, client, transfers, tl)
	}

	ms := monitor.NewMetricsServer(st.Metrics, tl)
	ms.Run()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = ms.Stop(sctx)
	}()

	state := rescue.NewState(w.Address(), balance, gasPrice)
	m := rescue.NewMachine(client, state, rescue.Config{
		Target:        st.Target,
		Transfers:     transfers,
		FailurePolicy: st.FailurePolicy(),
	}, tl)

	outcome, err := m.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			tl.Warn("interrupted", zap.Stringer("phase", state.Phase()))
		} else {
			tl.Error("rescue aborted", zap.Stringer("phase", state.Phase()), zap.Error(err))
		}
		return 1
	}
	tl.Info("rescue finished", zap.Stringer("outcome", outcome))
	return 0
}

// resolveGasPrice picks the CLI argument, then the configured price, then the node's suggestion.
func resolveGasPrice(arg string, st *config.Settings, suggested *big.Int) (*big.Int, error) {
	if arg != "" {
		gwei, err := parseGwei(arg)
		if err != nil {
			return nil, fmt.Errorf("bad gas price argument %q: %w", arg, err)
		}
		return gwei, nil
	}
	if gp, err := st.GasPriceWei(); err != nil || gp != nil {
		return gp, err
	}
	if suggested == nil || suggested.Sign() <= 0 {
		return nil, errors.New("no gas price configured and the node suggested none")
	}
	return new(big.Int).Set(suggested), nil
}

func runPreflight(ctx context.Context, client *chain.Client, transfers []rescue.TokenTransfer, tl *zap.Logger) {
	for _, tr := range transfers {
		rep := client.Preflight(ctx, tr.Token, tr.To, tr.Amount)
		fields := []zap.Field{
			zap.String("token", tr.Token.Hex()),
			zap.String("symbol", tr.Symbol),
			zap.String("amount", tr.Amount.String()),
		}
		if rep.Balance != nil {
			fields = append(fields, zap.String("balance", rep.Balance.String()))
			if rep.Balance.Cmp(tr.Amount) < 0 {
				tl.Warn("token balance below configured amount", fields...)
			}
		}
		switch {
		case rep.Paused:
			tl.Warn("token is paused", fields...)
		case !rep.Transferable:
			tl.Warn("token transfer would fail", append(fields, zap.String("reason", rep.Reason))...)
		default:
			tl.Info("token transfer ok", fields...)
		}
	}
}
