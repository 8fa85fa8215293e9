package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ToxicPie/minecrab/core"
	"github.com/ToxicPie/minecrab/internal/debugserver"
	"github.com/ToxicPie/minecrab/internal/runtimeenv"
	"github.com/ToxicPie/minecrab/pkg/config"
)

// version is set at release time; left as a constant here since this
// module has no CI-driven build stamping yet.
const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{Use: "minecrab"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(opcodesCmd())
	rootCmd.AddCommand(versionCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string
	var dotEnvPath string
	var debugAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation to completion, emitting the EVENT| stream on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(configPath, dotEnvPath, debugAddr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config-path", "c", "config.json", "path to the game config JSON file")
	cmd.Flags().StringVar(&dotEnvPath, "env-file", ".env", "optional .env file with MINECRAB_* overrides")
	cmd.Flags().StringVar(&debugAddr, "debug-addr", "", "if set, serve /healthz, /metrics, /snapshot on this address")
	return cmd
}

func runSimulation(configPath, dotEnvPath, debugAddr string) error {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	runID := uuid.New().String()
	log.WithField("run_id", runID).Info("starting simulation run")

	if err := runtimeenv.LoadDotEnv(dotEnvPath); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	runtimeenv.ApplyOverrides(cfg)

	rng := rand.New(rand.NewSource(cfg.Seed))
	events := core.NewEventWriter(os.Stdout)
	kernel := core.NewKernel(events, log, rng)
	kernel.MaxProcesses = cfg.MaxProcesses
	kernel.CryptoSpawn = cfg.ChallengeSpawnTable()

	uids := make([]uint32, len(cfg.Players))
	names := make([]string, len(cfg.Players))
	for i, p := range cfg.Players {
		uids[i] = p.UID
		names[i] = p.Username
	}
	kernel.SetupUsers(uids, names)

	for _, p := range cfg.Players {
		emu, err := p.Process.BuildEmulator()
		if err != nil {
			return err
		}
		if _, ok := kernel.ForkInitProcess(p.UID, p.Process.Nice, p.Process.Lifetime, emu); !ok {
			log.WithField("uid", p.UID).Warn("could not place initial process, map may be too crowded")
		}
	}

	if debugAddr != "" {
		srv := debugserver.New(kernel, log)
		httpSrv := srv.Start(debugAddr)
		defer debugserver.Shutdown(httpSrv, 5*time.Second)
	}

	kernel.RunFullGame(cfg.MaxTicks)
	return nil
}

func opcodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opcodes",
		Short: "confirm the opcode table loaded with no duplicate registrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("opcode table loaded without panicking: no duplicate opcodes registered")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the minecrab version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
