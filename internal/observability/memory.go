package observability

import (
	"context"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// MemoryStats is the payload behind GET /stats/memory.
type MemoryStats struct {
	RSSBytes       uint64  `json:"rss_bytes"`
	VMSBytes       uint64  `json:"vms_bytes"`
	PercentOfLimit float64 `json:"percent_of_limit"`
}

// ReadMemoryStats samples the current process's resident memory via
// gopsutil.
func ReadMemoryStats(ctx context.Context, limitBytes uint64) (MemoryStats, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return MemoryStats{}, err
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}

	stats := MemoryStats{RSSBytes: info.RSS, VMSBytes: info.VMS}
	if limitBytes > 0 {
		stats.PercentOfLimit = float64(info.RSS) / float64(limitBytes) * 100
	}
	return stats, nil
}
