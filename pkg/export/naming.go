package export

import (
	"fmt"

	"github.com/matzehuels/kitbash/pkg/errors"
)

// MetadataName is the archive entry holding the layer records.
const MetadataName = "data.json"

// ArtifactName returns the archive entry name of a layer bitmap: the
// zero-padded z-index followed by the sanitized layer name. Names depend on
// z alone, so hiding a layer does not rename the others.
func ArtifactName(z int, name string) string {
	return fmt.Sprintf("%03d_%s.png", z, errors.SanitizeFilename(name))
}
