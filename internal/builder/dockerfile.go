package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// servingImage is the runtime base image for the generated Dockerfile.
const servingImage = "nvcr.io/nvidia/tritonserver:24.08-py3"

// writeDockerfile emits a Dockerfile next to the repository root that
// serves the built tree and installs the pipeline's declared package
// requirements. The requirements list is passed through untouched.
func writeDockerfile(outputDir string, requirements []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Auto generated by pipeforge. Do not edit.\n")
	fmt.Fprintf(&b, "FROM %s\n\n", servingImage)
	if len(requirements) > 0 {
		fmt.Fprintf(&b, "RUN pip install --no-cache-dir %s\n\n", strings.Join(requirements, " "))
	}
	fmt.Fprintf(&b, "COPY . /models\n\n")
	fmt.Fprintf(&b, "CMD [\"tritonserver\", \"--model-repository=/models\"]\n")

	path := filepath.Join(outputDir, "Dockerfile")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing Dockerfile: %w", err)
	}
	return path, nil
}
