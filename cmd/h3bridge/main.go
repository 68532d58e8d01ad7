// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command h3bridge serves a small HTTP API over HTTP/3 and, for clients
// which can not use QUIC, over HTTP/2 with the HTTP/3 endpoint advertised
// through Alt-Svc.
package main

import (
	"context"
	"embed"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/z5labs/h3bridge"
	"github.com/z5labs/h3bridge/config"
	"github.com/z5labs/h3bridge/pkg/appbuilder"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//go:embed config.yaml
var configDir embed.FS

const envPrefix = "H3BRIDGE"

func main() {
	err := newRootCommand(build).ExecuteContext(context.Background())
	if err != nil {
		log := slog.Default()
		if stage, ok := h3bridge.StageOf(err); ok {
			log = log.With(slogfield.Stage(string(stage)))
		}
		log.Error("failed to run", slogfield.Error(err))
		os.Exit(1)
	}
}

func newRootCommand(builder h3bridge.AppBuilderFunc[Config]) *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:           "h3bridge",
		Short:         "Serve HTTP/3 with an HTTP/2 fallback",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				err := godotenv.Load(envFile)
				if err != nil {
					return err
				}
			}

			return h3bridge.Run(
				cmd.Context(),
				appbuilder.Recover(appbuilder.OTel[Config](builder)),
				configSources(configPath)...,
			)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a yaml config file overriding the defaults")
	cmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file loaded before the config is read")

	return cmd
}

// configSources returns the embedded defaults, the file at path and the
// environment as config sources. Later sources override earlier ones.
func configSources(path string) []config.Source {
	srcs := []config.Source{
		config.FromYaml(config.RenderTemplate(config.NewFileReader(configDir, "config.yaml"))),
	}
	if path != "" {
		fr := config.NewFileReader(os.DirFS(filepath.Dir(path)), filepath.Base(path))
		srcs = append(srcs, config.FromYaml(config.RenderTemplate(fr)))
	}
	return append(srcs, config.FromEnv(envPrefix))
}
