package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/scholar-aggregator/internal/analysis"
	"github.com/helixir/scholar-aggregator/internal/domain"
)

func (c *cli) newAnalyzeCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "analyze <file-or-folder>...",
		Short: "Analyze local PDF files",
		Long: `Analyze extracts the text of local PDFs and reports the page and word
counts, a likely title, the abstract, the standard sections and the figures
and tables. A folder contributes its *.pdf files, up to --limit per folder.
A single file prints one report; several print a batch report.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = c.cfg.Analysis.BatchLimit
			}

			paths, err := expandPaths(args, limit)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return domain.NewNotFoundError("pdf", strings.Join(args, ", "))
			}

			if len(paths) == 1 && len(args) == 1 && !isDir(args[0]) {
				report, err := services.Local.AnalyzeLocalPaper(cmd.Context(), paths[0])
				if err != nil {
					return err
				}
				return c.print(report)
			}

			batch, err := services.Local.BatchAnalyze(cmd.Context(), paths)
			if err != nil {
				return err
			}
			if err := c.print(batch); err != nil {
				return err
			}
			if batch.Failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed analysis", batch.Failed, batch.TotalFiles)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum PDFs taken from each folder (default from config)")
	return cmd
}

// expandPaths replaces every folder argument by the PDFs it contains.
func expandPaths(args []string, limit int) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !isDir(arg) {
			paths = append(paths, arg)
			continue
		}
		found, err := analysis.FindPDFs(arg, limit)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (c *cli) newWorkflowCmd() *cobra.Command {
	var req analysis.WorkflowRequest
	cmd := &cobra.Command{
		Use:   "workflow <topic...>",
		Short: "Search a topic, evaluate the papers found and suggest further reading",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			req.Topic = strings.Join(args, " ")
			report, err := services.Workflow.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(report)
		},
	}
	cmd.Flags().StringVarP(&req.Source, "source", "s", string(domain.SourceTypeSemanticScholar), "source name or \"all\"")
	cmd.Flags().IntVarP(&req.NumPapers, "num-papers", "n", analysis.DefaultWorkflowPapers, "papers to analyze")
	cmd.Flags().BoolVar(&req.IncludeAnalysis, "analysis", true, "evaluate citation impact")
	cmd.Flags().BoolVar(&req.IncludeSummary, "summary", true, "summarize each paper")
	return cmd
}
