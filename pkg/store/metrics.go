package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_store_appends_total",
		Help: "Messages appended to the log.",
	})
	patchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_store_patches_total",
		Help: "In-place message patches applied.",
	})
	deletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_store_deletes_total",
		Help: "Messages deleted from the log.",
	})
)

func init() {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tanchat_store_disk_bytes",
		Help: "Best-effort on-disk size of the Pebble directory.",
	}, func() float64 { return float64(DiskUsage()) })
}

// DiskUsage walks the DB directory and sums file sizes. Best effort; zero
// when the store is not open.
func DiskUsage() uint64 {
	if db == nil || dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
