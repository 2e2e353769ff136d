// Command partid boots one process of a partitioned-container run: it
// joins (or starts) the bootstrap mesh over the Dynamic transport, then
// blocks serving Prometheus stats until terminated. It exists to make
// C5–C8 driveable from a real binary, not just from tests (SPEC_FULL.md
// §2 X2).
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partimesh/parti/bootstrap"
	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/container"
	"github.com/partimesh/parti/stats"
)

func main() {
	cfg := cmn.DefaultConfig()

	var (
		host         = flag.String("host", cfg.TCPHost, "this process's own listen host for mesh dials")
		port         = flag.Int("port", cfg.TCPPort+1, "this process's own listen port for mesh dials")
		masterHost   = flag.String("master-host", cfg.TCPHost, "LAIK_TCP2_HOST: the bootstrap rendezvous host")
		masterPort   = flag.Int("master-port", cfg.TCPPort, "LAIK_TCP2_PORT: the bootstrap rendezvous port")
		size         = flag.Int("size", cfg.Size, "LAIK_SIZE: number of processes in the run")
		name         = flag.String("name", "", "this process's location label (defaults to host:port)")
		metricsAddr  = flag.String("metrics-addr", ":9400", "address to serve /metrics on")
	)
	flag.Parse()

	cfg.Size = *size
	cfg.TCPHost = *masterHost
	cfg.TCPPort = *masterPort
	applyEnvOverrides(cfg)
	cmn.GCO.Put(cfg)

	if *name == "" {
		*name = fmt.Sprintf("%s:%d", *host, *port)
	}

	reg := prometheus.NewRegistry()
	st := stats.New(reg)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			nlog.Warningf("partid: metrics server stopped: %v\n", err)
		}
	}()

	g, tr, dir, err := bootstrap.Join(cfg, *host, *port, *name)
	if err != nil {
		nlog.Errorf("partid: bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	st.ActivePeers.Set(float64(g.Size - 1))

	c := container.New(g, tr, dir, st)
	nlog.Infof("partid: joined run as T%d of %d (location %s)\n", c.Group.MyID, c.Group.Size, *name)

	// A real run defines Data handles and drives SwitchTo from here;
	// partid itself only proves the bootstrap/transport wiring stays up.
	select {}
}

// applyEnvOverrides mirrors spec §6's environment-variable bootstrap
// knobs (LAIK_SIZE, LAIK_TCP2_HOST, LAIK_TCP2_PORT, LAIK_DEBUG_RANK,
// LAIK_MPI_BUG). It runs after the flags are applied, so a set
// environment variable overrides the matching flag.
func applyEnvOverrides(cfg *cmn.Config) {
	if v := os.Getenv("LAIK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Size = n
		}
	}
	if v := os.Getenv("LAIK_TCP2_HOST"); v != "" {
		cfg.TCPHost = v
	}
	if v := os.Getenv("LAIK_TCP2_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TCPPort = n
		}
	}
	if v := os.Getenv("LAIK_DEBUG_RANK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DebugRank = n
		}
	}
	if v := os.Getenv("LAIK_MPI_BUG"); v != "" {
		cfg.DropSmallMessages = true
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DropSmallMessagesUnder = n
		}
	}
}
