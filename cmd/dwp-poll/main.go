package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/ttmmdgt/caldera-cosmic/internal/config"
	"github.com/ttmmdgt/caldera-cosmic/internal/cycle"
	"github.com/ttmmdgt/caldera-cosmic/internal/liveness"
	"github.com/ttmmdgt/caldera-cosmic/internal/metrics"
	"github.com/ttmmdgt/caldera-cosmic/internal/scheduler"
	"github.com/ttmmdgt/caldera-cosmic/internal/store"
)

func main() {
	machine := flag.StringP("machine", "m", "", "restrict polling to machines with this name across all lines and devices")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	config.LoadDotEnv(".env")
	dbCfg := config.LoadDBConfig()

	sink, err := store.Open(dbCfg.DSN())
	if err != nil {
		logrus.Fatalf("MAIN, opening sink pool: %v", err)
	}

	devices, err := sink.LoadDevices()
	if err != nil {
		logrus.Errorf("MAIN, loading device catalog: %v", err)
	}
	if len(devices) == 0 {
		logrus.Warn("MAIN, no devices loaded from catalog, falling back to single-device development config")
		devices = []config.DeviceSpec{config.FallbackDevice()}
	}

	lv := liveness.NewTracker(sink)
	mtr := metrics.New()
	sched := scheduler.New(devices, cycle.DefaultConfig(), lv, mtr, *machine)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logrus.Infof("MAIN, received signal %v, shutting down", s)
		cancel()
	}()

	logrus.Infof("MAIN, starting poll loop across %d device(s)", len(devices))
	sched.Run(ctx, sink)

	if err := sink.Close(); err != nil {
		logrus.Errorf("MAIN, closing sink pool: %v", err)
	}
	logrus.Info("MAIN, clean shutdown")
	os.Exit(0)
}
