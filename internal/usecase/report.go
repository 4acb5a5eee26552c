package usecase

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Skip records an input file left out of a stage after a non-fatal error.
type Skip struct {
	Stage  string `json:"stage"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarises what a stage (or a whole run) wrote and skipped. It is
// safe for concurrent use by stage workers.
type Report struct {
	mu      sync.Mutex
	Written []string
	Skipped []Skip
}

func (r *Report) wrote(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written = append(r.Written, path)
}

func (r *Report) skip(stage, path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, Skip{Stage: stage, Path: path, Reason: err.Error()})
}

// Merge appends o to r.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	o.mu.Lock()
	written := append([]string(nil), o.Written...)
	skipped := append([]Skip(nil), o.Skipped...)
	o.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written = append(r.Written, written...)
	r.Skipped = append(r.Skipped, skipped...)
}

// sort orders entries by path so parallel stages report deterministically.
func (r *Report) sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Strings(r.Written)
	sort.SliceStable(r.Skipped, func(i, j int) bool {
		if r.Skipped[i].Stage != r.Skipped[j].Stage {
			return r.Skipped[i].Stage < r.Skipped[j].Stage
		}
		return r.Skipped[i].Path < r.Skipped[j].Path
	})
}

// Log writes the end-of-run summary, one warning per skipped file.
func (r *Report) Log(log logrus.FieldLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.WithFields(logrus.Fields{
		"written": len(r.Written),
		"skipped": len(r.Skipped),
	}).Info("run summary")
	for _, s := range r.Skipped {
		log.WithFields(logrus.Fields{
			"stage":  s.Stage,
			"file":   s.Path,
			"reason": s.Reason,
		}).Warn("skipped file")
	}
}
