package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b1zarr-e/ODTL/internal/catalog"
	"github.com/b1zarr-e/ODTL/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List and validate the challenge catalog",
	Long: `List and validate the challenge catalog.

Without --file the catalog configured in game.catalog_file is used, or the
built-in questions when none is configured. Use --yaml to print the
catalog as a file you can edit.`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

var (
	catalogFile string
	catalogYAML bool
)

func init() {
	catalogCmd.Flags().StringVar(&catalogFile, "file", "", "catalog file to check")
	catalogCmd.Flags().BoolVar(&catalogYAML, "yaml", false, "print the catalog as YAML")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	path := catalogFile
	if path == "" {
		path = config.Get().Game.CatalogFile
	}
	challenges, err := loadChallenges(path)
	if err != nil {
		return err
	}
	if err := catalog.Validate(challenges); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if catalogYAML {
		data, err := catalog.Encode(challenges)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	source := path
	if source == "" {
		source = "(built-in)"
	}
	fmt.Fprintf(out, "Catalog: %s\n\n", source)
	for i, c := range challenges {
		fmt.Fprintf(out, "%2d. [%s] %s\n", i+1, c.Kind, c.Text)
		switch c.Kind {
		case catalog.Plain, catalog.AudioTrigger:
			for _, opt := range c.Options {
				fmt.Fprintf(out, "      - %s\n", opt)
			}
		case catalog.CameraTrigger:
			fmt.Fprintf(out, "      warning: %s\n", c.Warning)
		}
	}

	counts := catalog.Count(challenges)
	fmt.Fprintf(out, "\n%d challenges: %d plain, %d camera, %d microphone\n",
		len(challenges), counts[catalog.Plain], counts[catalog.CameraTrigger], counts[catalog.AudioTrigger])
	return nil
}
