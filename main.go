package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abgoyal/image-patcher/internal/builder"
	"github.com/abgoyal/image-patcher/internal/config"
	"github.com/abgoyal/image-patcher/internal/ghcr"
	"github.com/abgoyal/image-patcher/internal/logging"
	"github.com/abgoyal/image-patcher/internal/packages"
	"github.com/abgoyal/image-patcher/internal/patch"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(config.New()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FAIL] Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "image-patcher",
		Short: "Rebuild published container images on top of an updated base.",
		Long: `image-patcher rebuilds every image published from a given digest on top of
a patched base image, pushes the result under the same tags and optionally
deletes the versions left untagged.

Each patch is a directory holding a Dockerfile and a patch.json:
  {
    "imageIds": ["sha256:..."],     // images to rebuild
    "dockerFile": "Dockerfile",     // optional
    "bumpVersion": true,            // bump 1.2.3-x to 1.2.4-x
    "deleteUntaggedImages": false
  }

Credentials come from PAT, falling back to GITHUB_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("registry", config.DefaultRegistry, "Registry the images are published to")
	flags.String("build-tool", config.DefaultBuildTool, "Container build tool binary for build and push; pruning always uses the Docker Engine API (DOCKER_HOST)")
	flags.Int("concurrency", config.DefaultConcurrency, "Maximum concurrent API calls while scanning packages")
	flags.String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	for _, key := range []string{"registry", "build-tool", "concurrency", "log-level"} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(
		newPatchCmd(v),
		newPatchAllCmd(v),
		newDeleteUntaggedCmd(v),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return rootCmd
}

func newPatchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "patch <patch-dir>",
		Short: "Apply a single patch directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := setup(cmd.Context(), v, true)
			if err != nil {
				return err
			}
			if err := p.Apply(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[OK] Patch %s applied.\n", args[0])
			return nil
		},
	}
}

func newPatchAllCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch-all",
		Short: "Apply every patch under the patch root, resuming from status.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, settings, err := setup(cmd.Context(), v, true)
			if err != nil {
				return err
			}
			runner := &patch.Runner{
				Root:    settings.PatchRoot,
				Applier: p,
				Logger:  p.Logger(),
			}
			if err := runner.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[OK] All patches under %s applied.\n", settings.PatchRoot)
			return nil
		},
	}
	cmd.Flags().String("root", config.DefaultPatchRoot, "Directory holding one sub-directory per patch")
	_ = v.BindPFlag("root", cmd.Flags().Lookup("root"))
	return cmd
}

func newDeleteUntaggedCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-untagged <patch-dir>",
		Short: "Delete the untagged versions of the images listed in a patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := setup(cmd.Context(), v, false)
			if err != nil {
				return err
			}
			if err := p.DeleteUnpatched(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "[OK] Untagged images deleted.")
			return nil
		},
	}
}

// setup resolves settings and wires the clients. The token is checked before
// any client is built so a missing credential never reaches the network. The
// build tool and its Docker Engine client are only created when build is set.
func setup(ctx context.Context, v *viper.Viper, build bool) (*patch.Patcher, *config.Settings, error) {
	settings, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(os.Stderr, settings.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	log.SetDefault(logger)

	token, err := settings.RequireToken()
	if err != nil {
		return nil, nil, err
	}

	registry, err := ghcr.New(settings.Registry, token)
	if err != nil {
		return nil, nil, err
	}
	pkgs := packages.NewWithToken(ctx, token,
		packages.WithConcurrency(settings.Concurrency),
		packages.WithLogger(logger))
	opts := patch.Options{
		Registry:  settings.Registry,
		Packages:  pkgs,
		Manifests: registry,
		Logger:    logger,
	}
	if build {
		b, err := builder.NewDockerFromEnv(settings.BuildTool, logger)
		if err != nil {
			return nil, nil, err
		}
		opts.Builder = b
	}
	return patch.New(opts), settings, nil
}
