package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drakos74/hybrid-digits/internal/server"
	"github.com/drakos74/hybrid-digits/internal/stats"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func printJson(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	report, err := e.session.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	return printJson(report)
}

func runLoop(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.restore(); err != nil {
		return err
	}
	if !e.session.Ready() {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Println("training a new model ...")
		if _, err := e.session.Initialize(cmd.Context(), cfg); err != nil {
			return err
		}
	}
	return interact(e.session, os.Stdin, os.Stdout)
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	debug, _ := cmd.Flags().GetBool("debug")
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.restore(); err != nil {
		return err
	}

	api := server.NewAPI(e.session)
	grafana := server.NewGrafana().Snapshots(e.archive.Snapshots)
	srv := server.NewServer("hybrid", port)
	if debug {
		srv.Debug()
		api.Debug()
	}
	srv.Add(server.Live()).
		Add(api.Routes()...).
		Add(grafana.Routes()...).
		Handle("/metrics", e.metrics.Handler())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	log.Info().Bool("ready", e.session.Ready()).Msg("serving session")
	return srv.Run(ctx)
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.restore(); err != nil {
		return err
	}
	history, err := e.archive.Snapshots()
	if err != nil {
		return err
	}
	current := e.session.Stats()
	fmt.Println(stats.Summary(e.session.Samples()))
	return printJson(struct {
		Current interface{} `json:"current"`
		History int         `json:"history"`
	}{
		Current: current,
		History: len(history),
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.session.Reset(); err != nil {
		return err
	}
	fmt.Println("session reset")
	return nil
}
