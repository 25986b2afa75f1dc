package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/session"
)

var (
	runURL          string
	runRequirements string
	runOutput       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one extraction job to completion and write the CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runURL == "" {
			return eris.New("run: --url is required")
		}
		if runRequirements == "" {
			return eris.New("run: --requirements is required")
		}

		store := session.NewStore()
		orch := newOrchestrator(cfg, store, nil)

		sess, ctx := store.Create(runURL, runRequirements)
		orch.Run(ctx, sess.ID)

		final, err := store.Get(sess.ID)
		if err != nil {
			return eris.Wrap(err, "run: load session")
		}
		if final.Error != "" {
			return eris.Errorf("run: extraction failed: %s", final.Error)
		}

		for i, st := range final.Stages {
			fmt.Printf("stage %d %-20s %s\n", i, st.Name+":", st.Details)
		}

		if final.Result == nil {
			fmt.Println("no data extracted")
			return nil
		}
		fmt.Printf("extracted %d records, %d fields (%s)\n",
			final.Result.Records, final.Result.Fields, final.Result.Size)

		if runOutput != "" {
			if err := os.WriteFile(runOutput, []byte(final.Result.CSV), 0o644); err != nil {
				return eris.Wrap(err, "run: write output")
			}
			zap.L().Info("wrote output", zap.String("path", runOutput))
		} else {
			fmt.Println(final.Result.CSV)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "target website URL")
	runCmd.Flags().StringVar(&runRequirements, "requirements", "", "what data to extract")
	runCmd.Flags().StringVar(&runOutput, "output", "", "CSV output path (default stdout)")
	rootCmd.AddCommand(runCmd)
}
