// Package prerequisites checks the external tools the pipeline drives and
// records their versions for the vars file.
package prerequisites

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/imamik/hpcmaker/internal/config"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the display name.
	Name string

	// Binary is the executable name or path resolved through PATH.
	Binary string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string

	// VersionArgs are passed to Binary to print its version.
	VersionArgs []string

	// ParseVersion extracts the version from the tool output. An empty
	// result means the tool is unusable.
	ParseVersion func(output string) string
}

// Swapped in tests.
var (
	lookPath = exec.LookPath
	runTool  = func(ctx context.Context, path string, args ...string) ([]byte, error) {
		// #nosec G204 - path comes from settings, args from Tool definitions
		return exec.CommandContext(ctx, path, args...).CombinedOutput()
	}
)

// versionTimeout bounds each version command.
const versionTimeout = 30 * time.Second

// Terraform returns the terraform check.
func Terraform(binary string) Tool {
	return Tool{
		Name:         "terraform",
		Binary:       binary,
		Required:     true,
		Description:  "Required to build jumphost instances",
		InstallURL:   "https://www.terraform.io/downloads",
		VersionArgs:  []string{"-version"},
		ParseVersion: secondField,
	}
}

// Ansible returns the ansible check. The playbook runner is checked
// separately because it is the binary actually executed.
func Ansible(binary string) Tool {
	return Tool{
		Name:         "ansible",
		Binary:       binary,
		Required:     true,
		Description:  "Required to render templates and drive builds and teardowns",
		InstallURL:   "https://docs.ansible.com/ansible/latest/installation_guide/",
		VersionArgs:  []string{"--version"},
		ParseVersion: ansibleVersion,
	}
}

func AnsiblePlaybook(binary string) Tool {
	return Tool{
		Name:         "ansible-playbook",
		Binary:       binary,
		Required:     true,
		Description:  "Runs create and delete playbooks",
		InstallURL:   "https://docs.ansible.com/ansible/latest/installation_guide/",
		VersionArgs:  []string{"--version"},
		ParseVersion: ansibleVersion,
	}
}

// Pcluster is optional: teardown only uses it to report cluster status.
func Pcluster(binary string) Tool {
	return Tool{
		Name:         "pcluster",
		Binary:       binary,
		Description:  "Reports cluster status before teardown",
		InstallURL:   "https://docs.aws.amazon.com/parallelcluster/latest/ug/install-v3.html",
		VersionArgs:  []string{"version"},
		ParseVersion: firstLine,
	}
}

func Python(binary string) Tool {
	return Tool{
		Name:         "python3",
		Binary:       binary,
		Description:  "Runs the generated cluster access script",
		InstallURL:   "https://www.python.org/downloads/",
		VersionArgs:  []string{"--version"},
		ParseVersion: secondField,
	}
}

func SSH(binary string) Tool {
	return Tool{
		Name:         "ssh",
		Binary:       binary,
		Description:  "Connects to jumphosts",
		InstallURL:   "https://www.openssh.com/",
		VersionArgs:  []string{"-V"},
		ParseVersion: firstLine,
	}
}

// ForCreate returns the tools needed to create an entity of kind.
func ForCreate(paths config.ToolPaths, kind config.Kind) []Tool {
	tools := []Tool{Ansible(paths.Ansible), AnsiblePlaybook(paths.AnsiblePlaybook)}
	if kind == config.KindJumphost {
		tools = append(tools, Terraform(paths.Terraform))
	}
	return tools
}

// ForDestroy returns the tools needed to tear down an entity of kind.
func ForDestroy(paths config.ToolPaths, kind config.Kind) []Tool {
	tools := []Tool{AnsiblePlaybook(paths.AnsiblePlaybook)}
	if kind == config.KindCluster {
		tools = append(tools, Pcluster(paths.Pcluster))
	}
	return tools
}

// All returns every tool hpcmaker can use, for the doctor command.
func All(paths config.ToolPaths) []Tool {
	return []Tool{
		Ansible(paths.Ansible),
		AnsiblePlaybook(paths.AnsiblePlaybook),
		Terraform(paths.Terraform),
		Pcluster(paths.Pcluster),
		Python(paths.Python),
		SSH(paths.SSH),
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s is missing! Please visit: %s", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, "; "))
}

// Version returns the detected version of the named tool, or "".
func (r *CheckResults) Version(name string) string {
	for _, res := range r.Results {
		if res.Tool.Name == name {
			return res.Version
		}
	}
	return ""
}

// Check verifies that the specified tools are available. A tool counts as
// found only when its version can be read.
func Check(ctx context.Context, tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := lookPath(tool.Binary)
		if err == nil {
			result.Path = path
			result.Version = toolVersion(ctx, path, tool)
			result.Found = result.Version != ""
		}
		if !result.Found {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

func toolVersion(ctx context.Context, path string, tool Tool) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := runTool(ctx, path, tool.VersionArgs...)
	if err != nil {
		return ""
	}
	parse := tool.ParseVersion
	if parse == nil {
		parse = firstLine
	}
	return parse(string(out))
}

func firstLine(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(line)
}

// secondField handles "Terraform v1.9.5" and "Python 3.12.1".
func secondField(output string) string {
	fields := strings.Fields(firstLine(output))
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// ansibleVersion handles both "ansible 2.9.27" and "ansible [core 2.16.3]".
func ansibleVersion(output string) string {
	line := firstLine(output)
	if _, rest, ok := strings.Cut(line, "[core "); ok {
		return strings.TrimSuffix(strings.TrimSpace(rest), "]")
	}
	return secondField(line)
}
