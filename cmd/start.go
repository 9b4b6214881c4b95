package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gigaproxy/internal/config"
	"gigaproxy/internal/process"
	"gigaproxy/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy service",
	Long:  `Start the GigaChat proxy service, in the foreground or as a background daemon.`,
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolP("daemon", "d", false, "start the service in the background")
}

func runStart(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	daemon, _ := cmd.Flags().GetBool("daemon")

	cfg, err := cfgMgr.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			color.Red("MASTER_TOKEN is not set")
			fmt.Println("Set the MASTER_TOKEN environment variable to your GigaChat authorization credential.")
		}

		return err
	}

	setupLogging(cfg, verbose)

	procMgr := process.NewManager(baseDir)

	if daemon {
		return startDaemon(procMgr, cfg)
	}

	color.Green("Starting %s v%s...", AppName, Version)
	logger.Info("Starting server",
		"host", cfg.Host,
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
	)

	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	srv, err := server.New(cfg, Version, logger)
	if err != nil {
		return err
	}

	return srv.Start()
}

// startDaemon re-executes the start command in the background and waits for
// the PID file to confirm the service is up.
func startDaemon(procMgr *process.Manager, cfg *config.Config) error {
	started, err := procMgr.StartServiceIfNeeded()
	if err != nil {
		return err
	}

	if !started {
		color.Yellow("Service is already running (PID %d)", procMgr.ReadPID())
		return nil
	}

	color.Green("Service started in the background (PID %d)", procMgr.ReadPID())
	fmt.Printf("Endpoint: http://%s:%d\n", cfg.Host, cfg.Port)

	return nil
}
