package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/scholar-aggregator/internal/analysis"
)

func (c *cli) newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <source> <id>",
		Short: "Fetch the record of one paper",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			paper, err := services.Aggregator.GetMetadata(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.print(paper)
		},
	}
}

func (c *cli) newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <source> <id>",
		Short: "Download the PDF of one paper into the downloads directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			saved, err := services.Aggregator.DownloadPDF(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.print(map[string]any{"status": saved.Status(), "file": saved})
		},
	}
}

func (c *cli) newPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <source> <id>",
		Short: "Print a deep analysis prompt for one paper",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			paper, err := services.Aggregator.GetMetadata(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.print(map[string]string{
				"paper_id": paper.ID,
				"source":   string(paper.Source),
				"prompt":   analysis.DeepAnalysisPrompt(*paper),
			})
		},
	}
}

func (c *cli) newSummaryCmd() *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "summary <source> <id>",
		Short: "Summarize one paper",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := analysis.ParseSummaryStyle(style)
			if err != nil {
				return err
			}
			services, err := c.load()
			if err != nil {
				return err
			}
			paper, err := services.Aggregator.GetMetadata(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.print(analysis.Summarize(*paper, parsed, time.Now()))
		},
	}
	cmd.Flags().StringVar(&style, "style", string(analysis.StyleComprehensive), "brief, comprehensive, technical or layman")
	return cmd
}
