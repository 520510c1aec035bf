// Package cli implements the scenereel command line: it assembles a scene
// file, or a prompt, into a published video without running the API server.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Main runs the root command and exits non-zero on failure.
func Main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scenereel",
		Short:         "Turn scene descriptions into a narrated video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	assemble := &cobra.Command{
		Use:   "assemble [scenes.json]",
		Short: "Generate, assemble and publish the scenes in a JSON file or planned from --prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(cmd, args)
		},
	}

	assemble.Flags().String("prompt", "", "Plan the scenes from this prompt instead of a file")
	assemble.Flags().String("out", "", "Directory for the final video (default <TEMP_DIR>/output)")
	assemble.Flags().Bool("keep-output", false, "Keep the local video after a successful upload")
	assemble.Flags().Float64("max-audio", 0, "Per-scene audio cap in seconds (default MAX_SCENE_AUDIO_SEC)")
	assemble.Flags().String("backend", "", "Upload backend: livepeer, s3, youtube or local")
	assemble.Flags().Int("concurrency", 0, "Scenes generated in parallel")
	assemble.Flags().Duration("timeout", 0, "Abort after this long (default JOB_TIMEOUT)")

	root.AddCommand(assemble)
	return root
}
