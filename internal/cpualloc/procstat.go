package cpualloc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ProcStatSampler estimates CPU utilization from /proc/stat deltas between
// successive calls. No suitable third-party CPU-utilization library appears
// among the retrieved example repositories (klauspost/cpuid reports feature
// flags, not load); this is the one component of the allocator built
// directly on the standard library, scoped to Linux where /proc/stat
// exists. On other platforms UtilizationPercent reports an error and the
// allocator simply skips that rescan.
type ProcStatSampler struct {
	mu   sync.Mutex
	prev cpuTimes
	have bool
}

type cpuTimes struct {
	idle  uint64
	total uint64
}

// UtilizationPercent returns the percentage of CPU time spent non-idle
// since the previous call. The first call always returns 0 (no baseline).
func (s *ProcStatSampler) UtilizationPercent() (float64, error) {
	cur, err := readProcStatTotals()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.have {
		s.prev = cur
		s.have = true

		return 0, nil
	}

	deltaTotal := cur.total - s.prev.total
	deltaIdle := cur.idle - s.prev.idle
	s.prev = cur

	if deltaTotal == 0 {
		return 0, nil
	}

	busy := deltaTotal - deltaIdle

	return 100 * float64(busy) / float64(deltaTotal), nil
}

func readProcStatTotals() (cpuTimes, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuTimes{}, fmt.Errorf("cpualloc: open /proc/stat: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)[1:]

		var total, idle uint64

		for i, fstr := range fields {
			v, err := strconv.ParseUint(fstr, 10, 64)
			if err != nil {
				continue
			}

			total += v
			if i == 3 || i == 4 { // idle, iowait
				idle += v
			}
		}

		return cpuTimes{idle: idle, total: total}, nil
	}

	return cpuTimes{}, fmt.Errorf("cpualloc: no \"cpu \" line in /proc/stat")
}
