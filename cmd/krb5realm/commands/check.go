package commands

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/krb5test/internal/cli/output"
	"github.com/marmos91/krb5test/internal/krb5path"
	"github.com/marmos91/krb5test/pkg/realm"
)

var checkOutput string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which Kerberos implementations this host can run",
	Long: `Inspect the host for Kerberos tooling: resolved tool paths per
implementation, the installed version, and the krb5 plugin directory.
Useful for understanding why tests are skipped on a machine.

Examples:
  krb5realm check
  krb5realm check --output json`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "table", "output format (table, json, yaml)")
}

// hostReport describes the host's Kerberos tooling.
type hostReport struct {
	Version   string           `json:"version" yaml:"version"`
	PluginDir string           `json:"plugin_dir,omitempty" yaml:"plugin_dir,omitempty"`
	Providers []providerReport `json:"providers" yaml:"providers"`
}

type providerReport struct {
	Provider string       `json:"provider" yaml:"provider"`
	Usable   bool         `json:"usable" yaml:"usable"`
	Tools    []toolReport `json:"tools" yaml:"tools"`
}

type toolReport struct {
	Path      string `json:"path" yaml:"path"`
	Available bool   `json:"available" yaml:"available"`
}

// Headers implements output.TableRenderer.
func (r hostReport) Headers() []string {
	return []string{"PROVIDER", "USABLE", "TOOL", "STATUS"}
}

// Rows implements output.TableRenderer.
func (r hostReport) Rows() [][]string {
	var rows [][]string
	for _, p := range r.Providers {
		usable := "no"
		if p.Usable {
			usable = "yes"
		}
		for i, tool := range p.Tools {
			status := "missing"
			if tool.Available {
				status = "ok"
			}
			if i == 0 {
				rows = append(rows, []string{p.Provider, usable, tool.Path, status})
			} else {
				rows = append(rows, []string{"", "", tool.Path, status})
			}
		}
	}
	return rows
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(checkOutput)
	if err != nil {
		return err
	}

	report := buildHostReport()
	printer := output.NewPrinter(os.Stdout, format, false)

	if format == output.FormatTable {
		version := report.Version
		if version == "" {
			version = "unknown"
		}
		pluginDir := report.PluginDir
		if pluginDir == "" {
			pluginDir = "not found"
		}
		if err := output.SimpleTable(os.Stdout, [][2]string{
			{"kerberos version", version},
			{"plugin directory", pluginDir},
		}); err != nil {
			return err
		}
		printer.Println()
	}

	if err := printer.Print(report); err != nil {
		return err
	}

	if format == output.FormatTable {
		printer.Println()
		if missing := report.missingProviders(); len(missing) > 0 {
			printer.Warning("not usable: " + strings.Join(missing, ", "))
		} else {
			printer.Success("all providers usable")
		}
	}
	return nil
}

// missingProviders lists providers with at least one missing tool.
func (r hostReport) missingProviders() []string {
	var missing []string
	for _, p := range r.Providers {
		if !p.Usable {
			missing = append(missing, p.Provider)
		}
	}
	return missing
}

func buildHostReport() hostReport {
	report := hostReport{
		PluginDir: krb5path.PluginDir(),
	}
	if v, err := krb5path.Version(); err == nil {
		report.Version = v
	}

	for _, p := range []realm.Provider{realm.ProviderMIT, realm.ProviderHeimdal} {
		tools, err := realm.RequiredTools(p, nil)
		if err != nil {
			continue
		}
		pr := providerReport{
			Provider: string(p),
			Usable:   realm.ToolsAvailable(p, nil),
		}
		for _, tool := range tools {
			pr.Tools = append(pr.Tools, toolReport{
				Path:      tool,
				Available: executableExists(tool),
			})
		}
		report.Providers = append(report.Providers, pr)
	}
	return report
}

func executableExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0111 != 0
}
