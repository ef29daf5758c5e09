package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/logtriage/internal/config"
)

func newConfigCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write default configuration and templates",
		Long: "Create the configuration directory with a default config.yaml and the\n" +
			"prompt template files. Existing files are left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, show)
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the effective configuration with the credential hidden")
	return cmd
}

func runConfig(cmd *cobra.Command, show bool) error {
	dir, err := resolveConfigDir()
	if err != nil {
		return err
	}
	written, err := config.WriteDefaults(dir)
	if err != nil {
		return sysError(err)
	}

	out := cmd.OutOrStdout()
	for _, p := range written {
		fmt.Fprintf(out, "created %s\n", p)
	}
	fmt.Fprintf(out, "config: %s\n", filepath.Join(dir, config.FileName))

	if !show {
		return nil
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return userError(err)
	}
	if cfg.Credential != "" {
		cfg.Credential = "[set]"
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return sysError(fmt.Errorf("marshal config: %w", err))
	}
	fmt.Fprintf(out, "timeout_seconds: %d\ncache_enabled: %t\n%s", int(cfg.Timeout.Seconds()), cfg.CacheEnabled, data)
	return nil
}
