package task

import (
	"math"

	"mp3fetch/internal/acquire"
)

// singleConvertingPercent is reported once a single item's transfer is done
// and audio conversion starts.
const singleConvertingPercent = 95.0

// Slot places one acquisition inside its task. Total is zero for single
// items; for collections Index is 1-based.
type Slot struct {
	Index int
	Total int
}

// Progress is what an Event contributes to the task record.
type Progress struct {
	Percent  float64
	Status   Status
	Transfer *Transfer
}

// Aggregate maps a transfer event to the task-wide percentage, treating
// collection members as sequential slots of equal weight. It returns false
// when the event carries no usable size information.
func Aggregate(ev acquire.Event, slot Slot) (Progress, bool) {
	status := StatusDownloading
	if ev.Finished {
		status = StatusConverting
	}

	if slot.Total <= 0 {
		if ev.Finished {
			return Progress{Percent: singleConvertingPercent, Status: status, Transfer: transferOf(ev)}, true
		}
		fraction, ok := itemFraction(ev)
		if !ok {
			return Progress{}, false
		}
		return Progress{Percent: round1(fraction * 100), Status: status, Transfer: transferOf(ev)}, true
	}

	fraction, ok := itemFraction(ev)
	if !ok {
		return Progress{}, false
	}
	index := min(max(slot.Index, 1), slot.Total)
	n := float64(slot.Total)
	percent := float64(index-1)/n*100 + fraction*100/n
	return Progress{Percent: round1(clamp(percent, 0, 100)), Status: status, Transfer: transferOf(ev)}, true
}

// slotProgress is Aggregate for members running in parallel: every member
// contributes its own completed fraction with weight 1/N.
func slotProgress(fractions []float64) float64 {
	if len(fractions) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fractions {
		sum += clamp(f, 0, 1)
	}
	return round1(sum / float64(len(fractions)) * 100)
}

func itemFraction(ev acquire.Event) (float64, bool) {
	if ev.Finished {
		return 1, true
	}
	if ev.TotalBytes <= 0 {
		return 0, false
	}
	return clamp(float64(ev.DownloadedBytes)/float64(ev.TotalBytes), 0, 1), true
}

func transferOf(ev acquire.Event) *Transfer {
	return &Transfer{
		DownloadedBytes: ev.DownloadedBytes,
		TotalBytes:      ev.TotalBytes,
		Speed:           ev.Speed,
		ETASeconds:      int(ev.ETA.Seconds()),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
