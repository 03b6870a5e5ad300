// cloudimg publishes raw disk images into cloud marketplaces: on AWS the
// image ends up as an AMI backed by an imported EBS snapshot, on Azure as
// a page blob in a storage account.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

var (
	configPath string
	verbose    bool

	cfg *config
)

var rootCmd = &cobra.Command{
	Use:           "cloudimg",
	Short:         "Publish disk images to cloud marketplaces",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		var err error
		cfg, err = loadConfig(configPath)
		return err
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(awsCmd(), azureCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseTags turns repeated k=v flags into a tag map.
func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", pair)
		}
		tags[key] = value
	}
	return tags, nil
}

func parseBootMode(s string) (cloud.BootMode, error) {
	switch mode := cloud.BootMode(s); mode {
	case cloud.BootModeUnset, cloud.BootModeUEFI, cloud.BootModeLegacy, cloud.BootModeHybrid:
		return mode, nil
	default:
		return cloud.BootModeUnset, fmt.Errorf("invalid boot mode %q", s)
	}
}
