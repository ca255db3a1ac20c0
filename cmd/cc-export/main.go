package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/cc-export/pkg/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// errReported marks failures already shown to the user.
var errReported = errors.New("reported")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cc-export",
		Short: "Export campaigns and library files from Constant Contact",
		Long: "Walks the paginated Constant Contact v2 listings and saves every campaign record as JSON,\n" +
			"every campaign as a rendered PDF, or every document library file, below DOWNLOAD_DIR.\n" +
			"Settings come from a .env file, the environment, or flags.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	config.BindFlags(rootCmd.PersistentFlags())

	exports := []struct {
		use, short string
		variants   []string
	}{
		{"campaign-data", "Save every campaign record as JSON under CampaignData/", []string{variantCampaignData}},
		{"campaigns", "Render every campaign to PDF under Campaigns/ (needs wkhtmltopdf)", []string{variantCampaigns}},
		{"library", "Download every document library file under Library/", []string{variantLibrary}},
		{"all", "Run the campaign-data, campaigns and library exports in sequence", allVariants},
	}
	for _, e := range exports {
		variants := e.variants
		rootCmd.AddCommand(&cobra.Command{
			Use:   e.use,
			Short: e.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runExports(cmd, variants)
			},
		})
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status [variant...]",
		Short: "Show the latest recorded run per variant (needs REDIS_ADDR)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cc-export version %s\n", version)
		},
	})

	return rootCmd
}
