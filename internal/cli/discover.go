package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/tabload/internal/checksum"
	"github.com/vvka-141/tabload/internal/files/scanner"
	"github.com/vvka-141/tabload/internal/report"
	"github.com/vvka-141/tabload/internal/tui"
	"github.com/vvka-141/tabload/pkg/tabload"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <source_dir>",
	Short: "List the files a load would process, without connecting",
	Long: `Discover lists every .csv and .xlsx file under source_dir in the order
a load would process them, with size, modification time and a content
checksum. No database connection is made.`,
	Args:              RequireSourceDir,
	ValidArgsFunction: completeDirectories,
	RunE:              runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]
	out := cmd.OutOrStdout()

	files, err := scanner.NewScanner(checksum.New()).Discover(sourcePath)
	if errors.Is(err, tabload.ErrNoFiles) {
		fmt.Fprintf(out, "No .csv or .xlsx files found in %s\n", sourcePath)
		return nil
	}
	if err != nil {
		return err
	}

	rich := out == os.Stdout && tui.DetectMode(os.Stdout) == tui.ModeRich
	fmt.Fprintln(out, report.RenderFiles(files, rich))
	fmt.Fprintf(out, "%d %s\n", len(files), plural(len(files), "file", "files"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
