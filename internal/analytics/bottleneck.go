// Package analytics computes per-department dwell times from the audit log
// and flags departments that hold documents unusually long.
package analytics

import (
	"math"
	"sort"
	"time"

	"doctrack/internal/routing/models"
)

// DepartmentStat is one department's average dwell time.
type DepartmentStat struct {
	Department string  `json:"department"`
	AvgHours   float64 `json:"avg_hours"`
	Count      int     `json:"count"`
	Bottleneck bool    `json:"is_bottleneck"`
}

// Report is the bottleneck analysis over the whole log. Labels and Values
// carry the per-department averages in department order for charting.
type Report struct {
	Labels       []string         `json:"labels"`
	Values       []float64        `json:"values"`
	Departments  []DepartmentStat `json:"departments"`
	Bottlenecks  []DepartmentStat `json:"bottlenecks"`
	OverallMean  float64          `json:"overall_mean"`
	OverallStdev float64          `json:"overall_stdev"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// point is one instant on a document's timeline where some department starts
// holding it.
type point struct {
	models.Mark
	department string
}

// Samples collects positive dwell samples, in seconds, per department.
// events may span many documents in any order.
func Samples(events []models.AuditEvent) map[string][]float64 {
	timelines := make(map[int64][]point)
	for _, ev := range events {
		for _, m := range ev.Marks() {
			timelines[ev.RecordID] = append(timelines[ev.RecordID], point{Mark: m, department: ev.ToDepartment})
		}
	}

	samples := make(map[string][]float64)
	for _, tl := range timelines {
		sortTimeline(tl)
		for i := 0; i+1 < len(tl); i++ {
			cur, next := tl[i], tl[i+1]
			if cur.department == "" {
				continue
			}
			delta := next.At.Sub(cur.At).Seconds()
			if delta > 0 {
				samples[cur.department] = append(samples[cur.department], delta)
			}
		}
	}
	return samples
}

func sortTimeline(tl []point) {
	sort.SliceStable(tl, func(i, j int) bool { return tl[i].Before(tl[j].Mark) })
}

// Compute builds the report. A department is a bottleneck when its average
// exceeds the mean of all averages by more than one sample standard deviation.
func Compute(events []models.AuditEvent, now time.Time) *Report {
	samples := Samples(events)

	departments := make([]string, 0, len(samples))
	for d := range samples {
		departments = append(departments, d)
	}
	sort.Strings(departments)

	averages := make([]float64, len(departments))
	for i, d := range departments {
		averages[i] = mean(samples[d]) / 3600
	}
	overallMean := mean(averages)
	overallStdev := sampleStdev(averages)
	threshold := overallMean + overallStdev

	r := &Report{
		Labels:       departments,
		Values:       make([]float64, len(departments)),
		Departments:  make([]DepartmentStat, len(departments)),
		Bottlenecks:  []DepartmentStat{},
		OverallMean:  round2(overallMean),
		OverallStdev: round2(overallStdev),
		GeneratedAt:  now,
	}
	for i, d := range departments {
		stat := DepartmentStat{
			Department: d,
			AvgHours:   round2(averages[i]),
			Count:      len(samples[d]),
			Bottleneck: averages[i] > threshold,
		}
		r.Values[i] = stat.AvgHours
		r.Departments[i] = stat
		if stat.Bottleneck {
			r.Bottlenecks = append(r.Bottlenecks, stat)
		}
	}
	return r
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdev uses the n-1 denominator and is 0 below two values.
func sampleStdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
