package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mgomes/capdispatch/dispatch"
)

type methodInfo struct {
	Name        string   `json:"name" yaml:"name"`
	ID          string   `json:"id" yaml:"id"`
	Signature   string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	Summary     string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Modules     []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	WorldThread bool     `json:"world_thread,omitempty" yaml:"world_thread,omitempty"`
}

func describe(m *dispatch.Method) methodInfo {
	sig, summary := splitDoc(m.Doc())
	info := methodInfo{
		Name:        m.Name(),
		ID:          m.ID(),
		Signature:   sig,
		Summary:     summary,
		WorldThread: m.WorldThread(),
	}
	for _, id := range m.Modules() {
		info.Modules = append(info.Modules, string(id))
	}
	return info
}

// splitDoc splits "function(x:integer):table -- Does things" into its
// signature and summary.
func splitDoc(doc string) (string, string) {
	sig, summary, found := strings.Cut(doc, " -- ")
	if !found {
		if strings.HasPrefix(doc, "function") {
			return strings.TrimSpace(doc), ""
		}
		return "", strings.TrimSpace(doc)
	}
	return strings.TrimSpace(sig), strings.TrimSpace(summary)
}

func newMethodsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List registered methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := newRegistry(a.cfg, a.logger)
			if err != nil {
				return err
			}
			var infos []methodInfo
			for _, m := range registry.Methods() {
				infos = append(infos, describe(m))
			}
			return writeMethods(cmd, infos, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, yaml or json")
	return cmd
}

func writeMethods(cmd *cobra.Command, infos []methodInfo, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tMODULES\tSIGNATURE")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, strings.Join(info.Modules, ","), info.Signature)
		}
		return tw.Flush()
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	default:
		return fmt.Errorf("unknown format %q (want text, yaml or json)", format)
	}
}

func newDocCmd(a *app) *cobra.Command {
	var (
		style string
		width int
	)
	cmd := &cobra.Command{
		Use:   "doc [method]",
		Short: "Render method documentation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry(a.cfg, a.logger)
			if err != nil {
				return err
			}
			methods := registry.Methods()
			if len(args) == 1 {
				var matched []*dispatch.Method
				for _, m := range methods {
					if m.Name() == args[0] {
						matched = append(matched, m)
					}
				}
				if len(matched) == 0 {
					return fmt.Errorf("%w: %s", dispatch.ErrUnknownMethod, args[0])
				}
				methods = matched
			}

			rendered, err := renderDocs(methods, style, width)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style: auto, dark, light or notty")
	cmd.Flags().IntVar(&width, "width", 80, "word wrap width")
	return cmd
}

func docMarkdown(methods []*dispatch.Method) string {
	var b strings.Builder
	b.WriteString("# Methods\n")
	for _, m := range methods {
		info := describe(m)
		fmt.Fprintf(&b, "\n## %s\n\n", info.Name)
		if info.Signature != "" {
			fmt.Fprintf(&b, "`%s`\n\n", info.Signature)
		}
		if info.Summary != "" {
			b.WriteString(info.Summary + "\n\n")
		} else {
			b.WriteString("_Undocumented._\n\n")
		}
		fmt.Fprintf(&b, "- id: `%s`\n", info.ID)
		if len(info.Modules) > 0 {
			fmt.Fprintf(&b, "- modules: %s\n", strings.Join(info.Modules, ", "))
		}
		if info.WorldThread {
			b.WriteString("- runs on the world thread\n")
		}
	}
	return b.String()
}

func renderDocs(methods []*dispatch.Method, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(docMarkdown(methods))
}
