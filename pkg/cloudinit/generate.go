// Package cloudinit assembles the boot-time user-data payload for a new
// exit node by splicing the Tailscale auth key, the control-server URL and
// the setup script into the cloud-init wrapper template.
package cloudinit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arfa79/tailscale/pkg/model"
)

const (
	wrapperFile = "cloud-init-wrapper.bash"
	setupFile   = "tailscale-exit-node-setup.bash"

	markerAuthKey     = "{ts_authkey}"
	markerLoginServer = "{login_server}"
	markerSetupScript = "{setup_script_content}"
)

// Generator renders cloud-init payloads from the two template files in the
// shells directory. The templates are opaque text; quoting safety is the
// template authors' responsibility and values are substituted verbatim.
type Generator struct {
	wrapperPath string
	setupPath   string
}

// NewGenerator validates that both template files exist under shellsDir.
func NewGenerator(shellsDir string) (*Generator, error) {
	g := &Generator{
		wrapperPath: filepath.Join(shellsDir, wrapperFile),
		setupPath:   filepath.Join(shellsDir, setupFile),
	}
	for _, p := range []string{g.wrapperPath, g.setupPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", model.ErrTemplateMissing, p)
		}
	}
	return g, nil
}

// Generate substitutes the three placeholders into the wrapper template and
// verifies none of them survive in the output.
func (g *Generator) Generate(tsAuthKey, loginServer string) (string, error) {
	wrapper, err := os.ReadFile(g.wrapperPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrTemplateMissing, g.wrapperPath)
	}
	setup, err := os.ReadFile(g.setupPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrTemplateMissing, g.setupPath)
	}

	out := strings.NewReplacer(
		markerAuthKey, tsAuthKey,
		markerLoginServer, loginServer,
		markerSetupScript, string(setup),
	).Replace(string(wrapper))

	for _, marker := range []string{markerAuthKey, markerLoginServer, markerSetupScript} {
		if strings.Contains(out, marker) {
			return "", fmt.Errorf("cloud-init payload still contains placeholder %q", marker)
		}
	}
	return out, nil
}
