package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/zest"
	"github.com/pthm/zest/lib/dom"
)

var stripOutput string

var (
	fileStyle    = lipgloss.NewStyle().Bold(true)
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var directivesCmd = &cobra.Command{
	Use:   "directives [file...]",
	Short: "List the attach directives of pages",
	Long:  `List every attach directive in document order. Use - to read standard input.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDirectives,
}

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Check that directives point at elements and carry readable options",
	Long: `Check every attach directive: its target element must exist, no two
directives may share a target, and its options must decode. Sealed options
are opened with the configured key (ZEST_KEY).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var stripCmd = &cobra.Command{
	Use:   "strip [file]",
	Short: "Remove attach directives from a page",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrip,
}

// openPage parses a page into a runtime configured from the loaded config.
func openPage(cmd *cobra.Command, path string) (*zest.Runtime, *dom.Document, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		r = f
	}

	doc, err := dom.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, zest.WithLogger(logger), zest.WithDocument(doc))
	return zest.New(opts...), doc, nil
}

func payloadKind(d zest.Directive) string {
	switch {
	case !d.HasOptions:
		return "none"
	case d.Private:
		return "private"
	case d.Sealed:
		return "signed"
	default:
		return "json"
	}
}

func runDirectives(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTARGET\tCONTROLLER\tOPTIONS\tELEMENT")

	for _, path := range args {
		rt, doc, err := openPage(cmd, path)
		if err != nil {
			return err
		}
		for _, d := range rt.Directives() {
			element := "found"
			if doc.GetElementByID(d.TargetID) == nil {
				element = "missing"
			}
			controller := d.Controller
			if controller == "" {
				controller = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", path, d.TargetID, controller, payloadKind(d), element)
		}
	}
	return w.Flush()
}

// checkPage returns one problem per faulty directive.
func checkPage(rt *zest.Runtime, doc *dom.Document) []error {
	var problems []error
	seen := map[string]bool{}
	for _, d := range rt.Directives() {
		if seen[d.TargetID] {
			problems = append(problems, fmt.Errorf("%q: duplicate directive", d.TargetID))
		}
		seen[d.TargetID] = true

		if doc.GetElementByID(d.TargetID) == nil {
			problems = append(problems, fmt.Errorf("%w: %q", zest.ErrTargetNotFound, d.TargetID))
		}
		if _, err := rt.DirectiveOptions(d); err != nil {
			problems = append(problems, fmt.Errorf("%q: %w", d.TargetID, err))
		}
	}
	return problems
}

func runCheck(cmd *cobra.Command, args []string) error {
	var failed []error
	for _, path := range args {
		rt, doc, err := openPage(cmd, path)
		if err != nil {
			return err
		}
		problems := checkPage(rt, doc)
		for _, p := range problems {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", fileStyle.Render(path), problemStyle.Render(p.Error()))
		}
		logger.Debug("checked page",
			zap.String("file", path),
			zap.Int("directives", len(rt.Directives())),
			zap.Int("problems", len(problems)),
		)
		if len(problems) > 0 {
			failed = append(failed, fmt.Errorf("%s: %d problem(s)", path, len(problems)))
		}
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("ok"))
	return nil
}

func runStrip(cmd *cobra.Command, args []string) error {
	rt, doc, err := openPage(cmd, args[0])
	if err != nil {
		return err
	}
	directives := rt.Directives()
	for _, d := range directives {
		dom.Remove(d.Node)
	}
	logger.Debug("stripped directives", zap.Int("count", len(directives)))

	out := cmd.OutOrStdout()
	if stripOutput != "" {
		f, err := os.Create(stripOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return doc.Render(out)
}
