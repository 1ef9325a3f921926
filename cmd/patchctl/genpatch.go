package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanbornm/ttr-patcher/internal/bsdiff"
)

// newGenpatchCmd is manifest-authoring tooling, not part of the
// install-time patcher: given two local copies of a game file, it
// writes the bsdiff-4 delta between them, the same diff step the
// teacher's cmd/go-selfupdate/main.go ran over gzipped binaries via
// binarydist.Diff before uploading a new release. The result still
// needs bzip2-compressing and publishing to the CDN/manifest by
// whatever out-of-repo process maintains those (spec.md's "no
// server-side manifest generation" non-goal is about that publishing
// step, not about producing the delta bytes locally).
func newGenpatchCmd() *cobra.Command {
	var oldPath, newPath, outPath string

	cmd := &cobra.Command{
		Use:   "genpatch",
		Short: "Generate a bsdiff-4 delta between two local files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if oldPath == "" || newPath == "" || outPath == "" {
				return fmt.Errorf("--old, --new, and --out are all required")
			}
			out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("creating patch output: %w", err)
			}
			defer out.Close()

			if err := bsdiff.Diff(oldPath, newPath, out); err != nil {
				return fmt.Errorf("generating patch: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote patch %s -> %s to %s\n", oldPath, newPath, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&oldPath, "old", "", "path to the old version of the file")
	cmd.Flags().StringVar(&newPath, "new", "", "path to the new version of the file")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the bsdiff-4 delta to")
	return cmd
}
