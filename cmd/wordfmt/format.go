package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/docx"
	"github.com/jackzampolin/wordfmt/internal/downloads"
	"github.com/jackzampolin/wordfmt/internal/extract"
	"github.com/jackzampolin/wordfmt/internal/formatter"
	"github.com/jackzampolin/wordfmt/internal/server"
	"github.com/jackzampolin/wordfmt/internal/server/endpoints"
)

var (
	fmtInstructions string
	fmtRequirement  string
	fmtTOC          bool
	fmtTOCPosition  string
	fmtTOCLevels    string
	fmtOut          string
	fmtMarkdown     bool
)

var formatCmd = &cobra.Command{
	Use:   "format <file>",
	Short: "Format a document locally and write a .docx",
	Long: `Format a document without a running server.

The file (.docx, .html, .pdf or plain text) is extracted, sent to the
configured LLM provider and rebuilt as a Word document next to the input,
or at --out. Results are cached in the configured cache backend, so use the
sqlite or redis backend to reuse them across runs.

Examples:
  wordfmt format thesis.docx --requirement guidelines.pdf
  wordfmt format notes.html --instructions "APA 7th, double spaced" --toc
  wordfmt format report.pdf --markdown`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src := args[0]

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		logger, err := newLogger(mgr.Get())
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{Home: h, ConfigManager: mgr, Logger: logger})
		if err != nil {
			return err
		}
		if err := srv.Init(ctx); err != nil {
			return err
		}
		// Close drains the cache write-back queue.
		defer srv.Close()
		services := srv.Services()

		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src, err)
		}
		doc, err := services.Extractor.Document(ctx, filepath.Base(src), data)
		if err != nil {
			return err
		}
		if doc.Fallback {
			logger.Warn("PDF layout could not be recovered; formatting plain text", "file", src)
		}

		levels, err := endpoints.ParseLevels(fmtTOCLevels)
		if err != nil {
			return err
		}
		req := formatter.Request{
			DocumentContent:        doc.HTML,
			FormattingInstructions: fmtInstructions,
			TOCEnabled:             fmtTOC,
			TOCPosition:            fmtTOCPosition,
			TOCHeadingLevels:       levels,
		}
		if fmtRequirement != "" {
			refData, err := os.ReadFile(fmtRequirement)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", fmtRequirement, err)
			}
			ref, err := services.Extractor.Reference(ctx, filepath.Base(fmtRequirement), refData)
			if err != nil {
				return err
			}
			req.RequirementContent = ref.Text
		}

		res, err := services.Formatter.Format(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", formatter.PublicMessage(err), err)
		}

		if fmtMarkdown {
			md, err := extract.Markdown(res.FormattedContent)
			if err != nil {
				return err
			}
			fmt.Println(md)
			return nil
		}

		out, err := docx.NewWriter(res.Build(req.TOC()), docx.Properties{
			Title:   strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
			Creator: "wordfmt",
		}).Bytes()
		if err != nil {
			return err
		}
		outPath := fmtOut
		if outPath == "" {
			outPath = filepath.Join(filepath.Dir(src), downloads.FormattedName(filepath.Base(src)))
		}
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		fmt.Printf("Summary: %s\n", res.Summary)
		fmt.Printf("Wrote:   %s\n", outPath)
		return nil
	},
}

func init() {
	formatCmd.Flags().StringVar(&fmtInstructions, "instructions", "", "Free-form formatting instructions")
	formatCmd.Flags().StringVar(&fmtRequirement, "requirement", "", "Reference requirements document")
	formatCmd.Flags().BoolVar(&fmtTOC, "toc", false, "Insert a table of contents")
	formatCmd.Flags().StringVar(&fmtTOCPosition, "toc-position", "beginning", "TOC position: beginning or after-title")
	formatCmd.Flags().StringVar(&fmtTOCLevels, "toc-levels", "1,2,3", "Comma-separated heading levels in the TOC")
	formatCmd.Flags().StringVar(&fmtOut, "out", "", "Output .docx path (default: <input>_formatted.docx)")
	formatCmd.Flags().BoolVar(&fmtMarkdown, "markdown", false, "Print the formatted content as Markdown instead")

	rootCmd.AddCommand(formatCmd)
}
