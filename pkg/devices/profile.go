// Package devices ranks Zigbee source addresses by how well their data
// traffic matches a device role such as a door sensor or a smart outlet.
package devices

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/hed1ad/zigsense/pkg/capture"
)

// Profile aggregates the data frames sent by one source address.
type Profile struct {
	Addr        int64
	Count       int
	MeanGap     float64
	MedianGap   float64
	StdGap      float64
	CV          float64
	Bursts      int
	DistinctDst int
	MeanLen     float64
	HasLen      bool
}

// Profiles computes one Profile per source address that sent at least two
// data frames. A gap shorter than burstGap seconds counts as a burst.
// Results are ordered by address.
func Profiles(t *capture.Table, burstGap float64) []Profile {
	groups := t.DataBySource()
	profiles := make([]Profile, 0, len(groups))
	for addr, packets := range groups {
		if p, ok := profile(addr, packets, burstGap); ok {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Addr < profiles[j].Addr })
	return profiles
}

func profile(addr int64, packets []capture.Packet, burstGap float64) (Profile, bool) {
	if len(packets) < 2 {
		return Profile{}, false
	}

	times := make([]float64, len(packets))
	var lengths stats.Float64Data
	dsts := make(map[int64]struct{})
	for i, p := range packets {
		times[i] = p.Timestamp
		if p.Length.Valid {
			lengths = append(lengths, float64(p.Length.Int64))
		}
		if p.Dst.Valid {
			dsts[p.Dst.Int64] = struct{}{}
		}
	}
	sort.Float64s(times)

	gaps := make(stats.Float64Data, len(times)-1)
	bursts := 0
	for i := 1; i < len(times); i++ {
		gaps[i-1] = times[i] - times[i-1]
		if gaps[i-1] < burstGap {
			bursts++
		}
	}

	// gaps is never empty here, so the stats errors cannot fire.
	mean, _ := stats.Mean(gaps)
	median, _ := stats.Median(gaps)
	std, _ := stats.StandardDeviationPopulation(gaps)

	p := Profile{
		Addr:        addr,
		Count:       len(packets),
		MeanGap:     mean,
		MedianGap:   median,
		StdGap:      std,
		Bursts:      bursts,
		DistinctDst: len(dsts),
		MeanLen:     math.NaN(),
	}
	if mean > 0 {
		p.CV = std / mean
	}
	if len(lengths) > 0 {
		p.MeanLen, _ = stats.Mean(lengths)
		p.HasLen = true
	}
	return p, true
}
