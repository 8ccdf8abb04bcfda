package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/tardisdcr/tardis/internal/lang"
	"github.com/tardisdcr/tardis/internal/model"
	"github.com/tardisdcr/tardis/internal/project"
)

// loadGraph reads a choreography from either a .tardisdcr source file or
// a .json project file.
func loadGraph(path string) (*model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".json") {
		g, _, err := project.Unmarshal(data)
		return g, err
	}
	return lang.Parse(string(data))
}
