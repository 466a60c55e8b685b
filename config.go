/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	storeMemory = "memory"
	storeFile   = "file"
	storeSQLite = "sqlite"
)

var storeKinds = []string{storeMemory, storeFile, storeSQLite}

type Config struct {
	bind           string
	dataDir        string
	metrics        bool
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	store          string
	title          string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if !slices.Contains(storeKinds, c.store) {
		return fmt.Errorf("invalid store (must be one of %s): %s", strings.Join(storeKinds, ", "), c.store)
	}
	if c.store != storeMemory && c.dataDir == "" {
		return fmt.Errorf("--data-dir is required for the %s store", c.store)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LINEUP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "lineup",
		Short:         "Build, share and export a football lineup from a fixed roster.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: LINEUP_BIND)")
	fs.StringVarP(&cfg.dataDir, "data-dir", "d", "data", "directory holding saved lineups, for the file and sqlite stores (env: LINEUP_DATA_DIR)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: LINEUP_METRICS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: LINEUP_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: LINEUP_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: LINEUP_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle lineups are unloaded from memory (env: LINEUP_SESSION_TIMEOUT)")
	fs.StringVarP(&cfg.store, "store", "s", storeFile, "where lineups are saved: file, sqlite or memory (memory is lost on restart) (env: LINEUP_STORE)")
	fs.StringVar(&cfg.title, "title", "My Vasco Lineup", "page and export title (env: LINEUP_TITLE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: LINEUP_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: LINEUP_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: LINEUP_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: LINEUP_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("lineup v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
