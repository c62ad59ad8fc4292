package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"routectl/internal/api"
	"routectl/internal/config"
	"routectl/internal/engine"
	"routectl/internal/export"
	"routectl/internal/model"
	"routectl/internal/registry"
	"routectl/internal/server"
	"routectl/internal/sysmon"
)

const usage = `routectl - multi-criteria job routing and tunnel-lifecycle engine

Usage:
  routectl serve --config <path>
  routectl register --server <url> --id <node> [--reputation F] [--runtime F] [--cost F] [--affinity F] [--caps a,b] [--status AVAILABLE]
  routectl route --server <url> --job <id> [--type T] [--key K] [--max-runtime F] [--max-cost F]
  routectl execute --server <url> --job <id> [--source <node>] [--type T] [--key K]
  routectl stats --server <url>
  routectl export --server <url> [--decisions <file>] [--tunnels <file>]
  routectl demo
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "serve":
		handleServe(os.Args[2:])
	case "register":
		handleRegister(os.Args[2:])
	case "route":
		handleRoute(os.Args[2:])
	case "execute":
		handleExecute(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "export":
		handleExport(os.Args[2:])
	case "demo":
		handleDemo(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	cfg := config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal("load config: %v", err)
		}
		cfg = loaded
	}
	config.ApplyDefaults(&cfg)
	if cfg.Server == nil {
		cfg.Server = &config.ServerConfig{Listen: config.DefaultListen}
	}
	if err := config.Validate(cfg); err != nil {
		fatal("config: %v", err)
	}

	var reg *registry.Registry
	if cfg.Engine.SnapshotPath != "" {
		loaded, err := registry.LoadSnapshot(cfg.Engine.SnapshotPath)
		if err != nil {
			fatal("load snapshot: %v", err)
		}
		reg = loaded
		log.Printf("loaded %d nodes from %s", len(reg.List()), cfg.Engine.SnapshotPath)
	}

	eng, err := engine.New(*cfg.Engine, reg)
	if err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor != nil {
		mon := sysmon.New(*cfg.Monitor, eng)
		go func() {
			if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("monitor stopped: %v", err)
			}
		}()
	}

	srv := server.New(*cfg.Server, eng)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	if cfg.Engine.SnapshotPath != "" {
		if err := eng.SaveSnapshot(cfg.Engine.SnapshotPath); err != nil {
			log.Printf("save snapshot failed: %v", err)
		} else {
			log.Printf("saved registry snapshot to %s", cfg.Engine.SnapshotPath)
		}
	}
}

func handleRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	serverURL := fs.String("server", "http://"+config.DefaultListen, "control API base URL")
	id := fs.String("id", "", "node id")
	reputation := fs.Float64("reputation", 0.5, "reputation in [0,1]")
	runtime := fs.Float64("runtime", 0, "estimated runtime seconds")
	cost := fs.Float64("cost", 0, "credit cost")
	affinity := fs.Float64("affinity", 0.5, "energy affinity in [0,1]")
	caps := fs.String("caps", "", "comma-separated capabilities")
	status := fs.String("status", string(model.StatusAvailable), "node status")
	_ = fs.Parse(args)

	if *id == "" {
		fatal("--id is required")
	}
	node := model.NodeMetrics{
		ID:               *id,
		Reputation:       *reputation,
		EstimatedRuntime: *runtime,
		CreditCost:       *cost,
		EnergyAffinity:   *affinity,
		Status:           model.NodeStatus(*status),
	}
	if *caps != "" {
		node.Capabilities = strings.Split(*caps, ",")
	}
	client := api.NewClient(*serverURL)
	if err := client.RegisterNode(context.Background(), node); err != nil {
		fatal("register: %v", err)
	}
	fmt.Printf("registered %s\n", *id)
}

func handleRoute(args []string) {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	serverURL := fs.String("server", "http://"+config.DefaultListen, "control API base URL")
	jobID := fs.String("job", "", "job id")
	jobType := fs.String("type", "", "job type")
	key := fs.String("key", "", "resource locality key")
	maxRuntime := fs.Float64("max-runtime", 0, "runtime budget seconds (0 = none)")
	maxCost := fs.Float64("max-cost", 0, "cost budget (0 = none)")
	_ = fs.Parse(args)

	if *jobID == "" {
		fatal("--job is required")
	}
	client := api.NewClient(*serverURL)
	decision, err := client.Route(context.Background(), model.JobSpec{
		ID:          *jobID,
		JobType:     *jobType,
		ResourceKey: *key,
		MaxRuntime:  *maxRuntime,
		MaxCost:     *maxCost,
	})
	if err != nil {
		fatal("route: %v", err)
	}
	fmt.Printf("job=%s node=%s score=%.4f runtime=%.1fs cost=%.2f affinity=%.2f\n",
		decision.JobID, decision.SelectedNode, decision.Score,
		decision.EstimatedRuntime, decision.EstimatedCost, decision.EnergyAffinity)
}

func handleExecute(args []string) {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	serverURL := fs.String("server", "http://"+config.DefaultListen, "control API base URL")
	jobID := fs.String("job", "", "job id")
	jobType := fs.String("type", "", "job type")
	key := fs.String("key", "", "resource locality key")
	source := fs.String("source", "gateway", "source node for the tunnel")
	_ = fs.Parse(args)

	if *jobID == "" {
		fatal("--job is required")
	}
	client := api.NewClient(*serverURL)
	res, err := client.Execute(context.Background(), model.JobSpec{ID: *jobID, JobType: *jobType, ResourceKey: *key}, *source)
	if err != nil {
		fatal("execute: %v", err)
	}
	printResult(res)
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://"+config.DefaultListen, "control API base URL")
	_ = fs.Parse(args)

	client := api.NewClient(*serverURL)
	ctx := context.Background()

	nodes, err := client.NodeStats(ctx)
	if err != nil {
		fatal("node stats: %v", err)
	}
	routing, err := client.RoutingStats(ctx)
	if err != nil {
		fatal("routing stats: %v", err)
	}
	tunnels, err := client.TunnelStats(ctx)
	if err != nil {
		fatal("tunnel stats: %v", err)
	}

	fmt.Printf("nodes: total=%d", nodes.Total)
	for status, n := range nodes.ByStatus {
		fmt.Printf(" %s=%d", status, n)
	}
	fmt.Printf(" avg_reputation=%.3f avg_affinity=%.3f\n", nodes.AvgReputation, nodes.AvgEnergyAffinity)
	fmt.Printf("routing: count=%d avg_score=%.4f avg_runtime=%.1fs avg_cost=%.2f avg_affinity=%.2f\n",
		routing.Count, routing.AvgScore, routing.AvgRuntime, routing.AvgCost, routing.AvgAffinity)
	fmt.Printf("tunnels: total=%d active=%d closed=%d energy=%.2f data=%.0f\n",
		tunnels.Total, tunnels.Active, tunnels.Closed, tunnels.EnergyTransferred, tunnels.DataTransferred)
}

func handleExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	serverURL := fs.String("server", "http://"+config.DefaultListen, "control API base URL")
	decisionsPath := fs.String("decisions", "", "write routing history CSV here")
	tunnelsPath := fs.String("tunnels", "", "write tunnel table CSV here")
	_ = fs.Parse(args)

	if *decisionsPath == "" && *tunnelsPath == "" {
		fatal("at least one of --decisions or --tunnels is required")
	}
	client := api.NewClient(*serverURL)
	ctx := context.Background()

	if *decisionsPath != "" {
		decisions, err := client.Decisions(ctx)
		if err != nil {
			fatal("fetch decisions: %v", err)
		}
		if err := export.DecisionsToFile(*decisionsPath, decisions); err != nil {
			fatal("write decisions: %v", err)
		}
		fmt.Printf("wrote %d decisions to %s\n", len(decisions), *decisionsPath)
	}
	if *tunnelsPath != "" {
		tunnels, err := client.Tunnels(ctx)
		if err != nil {
			fatal("fetch tunnels: %v", err)
		}
		if err := export.TunnelsToFile(*tunnelsPath, tunnels); err != nil {
			fatal("write tunnels: %v", err)
		}
		fmt.Printf("wrote %d tunnels to %s\n", len(tunnels), *tunnelsPath)
	}
}

// handleDemo runs the engine in-process: a small fleet, a few jobs, stats.
func handleDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	jobs := fs.Int("jobs", 5, "number of jobs to run")
	_ = fs.Parse(args)

	cfg := config.Config{}
	config.ApplyDefaults(&cfg)
	eng, err := engine.New(*cfg.Engine, nil)
	if err != nil {
		fatal("%v", err)
	}

	eng.RegisterNode(model.NodeMetrics{ID: "node-1", Reputation: 0.9, EstimatedRuntime: 10, CreditCost: 5, EnergyAffinity: 0.8, Status: model.StatusAvailable})
	eng.RegisterNode(model.NodeMetrics{ID: "node-2", Reputation: 0.7, EstimatedRuntime: 20, CreditCost: 3, EnergyAffinity: 0.6, Status: model.StatusAvailable})
	eng.RegisterNode(model.NodeMetrics{ID: "node-3", Reputation: 0.95, EstimatedRuntime: 5, CreditCost: 10, EnergyAffinity: 0.9, Status: model.StatusAvailable})
	if err := eng.AddResourceKey("node-1", "dataset-7"); err != nil {
		fatal("add key: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < *jobs; i++ {
		job := model.JobSpec{ID: fmt.Sprintf("job-%d", i), JobType: "batch"}
		if i%2 == 1 {
			job.ResourceKey = "dataset-7"
		}
		printResult(eng.RouteAndExecute(ctx, job, "gateway"))
	}

	routing := eng.RoutingStatistics()
	tunnels := eng.TunnelStatistics()
	fmt.Printf("routing: count=%d avg_score=%.4f\n", routing.Count, routing.AvgScore)
	fmt.Printf("tunnels: closed=%d energy=%.2f data=%.0f\n", tunnels.Closed, tunnels.EnergyTransferred, tunnels.DataTransferred)
}

func printResult(res model.ExecutionResult) {
	if res.Status == model.ExecSuccess {
		fmt.Printf("job=%s %s node=%s tunnel=%s runtime=%.1fs cost=%.2f energy=%.2f\n",
			res.JobID, res.Status, res.Node, res.TunnelID, res.Runtime, res.Cost, res.EnergyTransferred)
		return
	}
	fmt.Printf("job=%s %s reason=%q\n", res.JobID, res.Status, res.Reason)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
