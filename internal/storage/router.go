package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface.
var _ storage.Router = (*PartRouter)(nil)

// PartRouter implements Hive-style keys for exported part files.
// Format: prefix/dataset/dt=YYYY-MM-DD/part-NNNNN-<run id><ext>
type PartRouter struct {
	prefix  string
	dataset string
	runID   string
	date    string
}

// NewRouter creates a part router for one export run.
// The dataset is usually the source file name without its extension.
// An empty runID generates a random one.
func NewRouter(prefix, dataset, runID string, now time.Time) *PartRouter {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &PartRouter{
		prefix:  strings.Trim(prefix, "/"),
		dataset: DatasetName(dataset),
		runID:   runID,
		date:    now.UTC().Format("2006-01-02"),
	}
}

// Route returns the key of the seq-th part.
func (r *PartRouter) Route(seq int, ext string) string {
	name := fmt.Sprintf("part-%05d-%s%s", seq, r.runID, ext)
	return ObjectKey(r.prefix, path.Join(r.dataset, "dt="+r.date, name))
}

// RunID returns the run identifier embedded in every key.
func (r *PartRouter) RunID() string {
	return r.runID
}

// DatasetName derives a dataset name from a source path: the base name
// without extension, or "events" when nothing is left.
func DatasetName(source string) string {
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return "events"
	}
	return base
}
