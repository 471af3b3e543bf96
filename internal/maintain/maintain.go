// Package maintain derives service-schedule facts from follow-up history and
// task records: the latest and previous maintenance visits, the base date for
// the next visit, and the most recent cashier payment note.
//
// The CRM stores none of these directly. They are inferred from noisy
// records: maintenance visits are follow-ups whose owner name carries the
// maintenance-team marker, and the next visit comes from scheduled tasks
// ranked by owner match and recency.
package maintain

import (
	"sort"
	"strings"
	"time"

	"github.com/maqua/member-lookup/internal/dates"
	"github.com/maqua/member-lookup/internal/record"
)

// maintenanceOwnerMarker tags follow-up entries logged by the maintenance
// team.
const maintenanceOwnerMarker = "維修幫"

// cashierOwner tags follow-up entries logged by the cashier desk; those notes
// carry the payment status.
const cashierOwner = "出納008"

// Summary holds the derived service dates for one customer.
type Summary struct {
	CustomerCode        string
	CustomerName        string
	LatestServiceDate   string
	PreviousServiceDate string
	NextServiceDate     string
}

// Options configures task-based next-service selection.
type Options struct {
	// OwnerKeyword marks tasks owned by the maintenance scheduler; those
	// outrank tasks owned by anyone else.
	OwnerKeyword string
	// MaxGapDays caps how far past the reference date a fallback task date
	// may be. Zero means no cap.
	MaxGapDays int
}

type datedRecord struct {
	rec  record.Record
	date time.Time
}

// Extract computes the maintenance summary for a record set. When no
// follow-up date parses at all, it falls back to the nearest qualifying task
// date and returns a stub carrying only the next-service date.
func Extract(customerCode string, followups, tasks []record.Record, opts Options, today time.Time) Summary {
	today = dates.Truncate(today)

	var maintenance []datedRecord
	for _, rec := range followups {
		if !containsMarker(rec.Get("ower_name"), maintenanceOwnerMarker) {
			continue
		}
		if d, ok := dates.Parse(rec.Get("followTime")); ok {
			maintenance = append(maintenance, datedRecord{rec: rec, date: d})
		}
	}

	if len(maintenance) == 0 {
		summary := Summary{CustomerCode: customerCode}
		if taskDate, ok := UpcomingTaskDate(tasks, today, opts); ok {
			summary.NextServiceDate = dates.ISO(taskDate)
		}
		return summary
	}

	sort.SliceStable(maintenance, func(i, j int) bool {
		return maintenance[i].date.After(maintenance[j].date)
	})

	// Latest is the newest entry not in the future; if every entry is
	// future-dated the soonest one (last in descending order) stands in.
	latestIndex := len(maintenance) - 1
	for i, entry := range maintenance {
		if !entry.date.After(today) {
			latestIndex = i
			break
		}
	}

	latest := maintenance[latestIndex]
	var previousDate time.Time
	var hasPrevious bool
	if latestIndex+1 < len(maintenance) {
		previousDate = maintenance[latestIndex+1].date
		hasPrevious = true
	}

	nextBase, hasNext := SelectTaskBaseDate(tasks, opts.OwnerKeyword, latest.date, previousDate, hasPrevious, today)
	if !hasNext {
		if hasPrevious {
			nextBase, hasNext = previousDate, true
		} else {
			nextBase, hasNext = latest.date, true
		}
	}

	summary := Summary{
		CustomerCode:      customerCode,
		CustomerName:      record.CleanText(latest.rec.Get("customer_name")),
		LatestServiceDate: dates.ISO(latest.date),
	}
	if hasPrevious {
		summary.PreviousServiceDate = dates.ISO(previousDate)
	}
	if hasNext {
		summary.NextServiceDate = dates.ISO(nextBase)
	}
	return summary
}

// taskDate reads a task's effective date: startDate, then planDate, then
// endDate.
func taskDate(task record.Record) (time.Time, bool) {
	for _, field := range []string{"startDate", "planDate", "endDate"} {
		if d, ok := dates.Parse(task.Get(field)); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// SelectTaskBaseDate picks the base date for the next service from task
// records. Buckets, in priority order: owner-matched tasks strictly after
// today, any task after today, owner-matched tasks after the latest service,
// any task after the latest service, owner-matched most recent past task,
// any most recent past task. Future buckets take their earliest date, past
// buckets their latest. With no qualifying task the previous service date is
// returned when known.
func SelectTaskBaseDate(tasks []record.Record, ownerKeyword string, latestDate, previousDate time.Time, hasPrevious bool, today time.Time) (time.Time, bool) {
	if len(tasks) == 0 {
		if hasPrevious {
			return previousDate, true
		}
		return time.Time{}, false
	}
	today = dates.Truncate(today)

	var ownerFutureToday, generalFutureToday []time.Time
	var ownerFutureLatest, generalFutureLatest []time.Time
	var ownerPast, generalPast []time.Time

	for _, task := range tasks {
		start, ok := taskDate(task)
		if !ok {
			continue
		}
		isOwner := ownerKeyword != "" && containsMarker(task.Get("ower_name"), ownerKeyword)

		switch {
		case start.After(today):
			if isOwner {
				ownerFutureToday = append(ownerFutureToday, start)
			} else {
				generalFutureToday = append(generalFutureToday, start)
			}
		case !latestDate.IsZero() && start.After(latestDate):
			if isOwner {
				ownerFutureLatest = append(ownerFutureLatest, start)
			} else {
				generalFutureLatest = append(generalFutureLatest, start)
			}
		default:
			if isOwner {
				ownerPast = append(ownerPast, start)
			} else {
				generalPast = append(generalPast, start)
			}
		}
	}

	for _, bucket := range [][]time.Time{ownerFutureToday, generalFutureToday, ownerFutureLatest, generalFutureLatest} {
		if len(bucket) > 0 {
			return minDate(bucket), true
		}
	}
	for _, bucket := range [][]time.Time{ownerPast, generalPast} {
		if len(bucket) > 0 {
			return maxDate(bucket), true
		}
	}
	if hasPrevious {
		return previousDate, true
	}
	return time.Time{}, false
}

// UpcomingTaskDate finds the nearest qualifying task date relative to ref:
// owner-matched future first, then any future, then the most recent past
// (owner-matched outranking general). MaxGapDays, when set, discards tasks
// too far beyond ref.
func UpcomingTaskDate(tasks []record.Record, ref time.Time, opts Options) (time.Time, bool) {
	if len(tasks) == 0 {
		return time.Time{}, false
	}
	ref = dates.Truncate(ref)

	var ownerFuture, generalFuture, ownerPast, generalPast []time.Time
	for _, task := range tasks {
		d, ok := taskDate(task)
		if !ok {
			continue
		}
		if opts.MaxGapDays > 0 && d.Sub(ref) > time.Duration(opts.MaxGapDays)*24*time.Hour {
			continue
		}
		isOwner := opts.OwnerKeyword != "" && containsMarker(task.Get("ower_name"), opts.OwnerKeyword)
		if !d.Before(ref) {
			if isOwner {
				ownerFuture = append(ownerFuture, d)
			} else {
				generalFuture = append(generalFuture, d)
			}
		} else {
			if isOwner {
				ownerPast = append(ownerPast, d)
			} else {
				generalPast = append(generalPast, d)
			}
		}
	}

	if len(ownerFuture) > 0 {
		return minDate(ownerFuture), true
	}
	if len(generalFuture) > 0 {
		return minDate(generalFuture), true
	}
	if len(ownerPast) > 0 {
		return maxDate(ownerPast), true
	}
	if len(generalPast) > 0 {
		return maxDate(generalPast), true
	}
	return time.Time{}, false
}

// LatestServiceRecord picks the follow-up record to treat as the most recent
// visit: the newest dated entry not in the future, else the earliest future
// one, else the first record as-is.
func LatestServiceRecord(records []record.Record, today time.Time) record.Record {
	today = dates.Truncate(today)

	var dated []datedRecord
	for _, rec := range records {
		if d, ok := dates.Parse(record.FirstNonEmpty(rec.Get("followTime"), rec.Get("followUpTime"))); ok {
			dated = append(dated, datedRecord{rec: rec, date: d})
		}
	}
	if len(dated) == 0 {
		if len(records) > 0 {
			return records[0]
		}
		return nil
	}

	var past []datedRecord
	for _, entry := range dated {
		if !entry.date.After(today) {
			past = append(past, entry)
		}
	}
	if len(past) > 0 {
		sort.SliceStable(past, func(i, j int) bool { return past[i].date.After(past[j].date) })
		return past[0].rec
	}

	sort.SliceStable(dated, func(i, j int) bool { return dated[i].date.Before(dated[j].date) })
	return dated[0].rec
}

// RecordByDate returns the first record whose follow date equals the given
// ISO date.
func RecordByDate(records []record.Record, isoDate string) record.Record {
	target, ok := dates.Parse(isoDate)
	if !ok {
		return nil
	}
	for _, rec := range records {
		if d, ok := dates.Parse(record.FirstNonEmpty(rec.Get("followTime"), rec.Get("followUpTime"))); ok && d.Equal(target) {
			return rec
		}
	}
	return nil
}

// ResolveNextServiceDate scans free-text note values and follow contexts for
// scheduled dates when no task produced one. With a known latest-service
// date, dates after it win; when two or more such dates exist the
// second-to-last is chosen (the trailing entry is usually the note's own
// write date). Otherwise the first date from today on, else the newest date
// found.
func ResolveNextServiceDate(latestServiceISO string, followInfo map[string]string, records []record.Record, today time.Time) string {
	texts := []string{
		followInfo["內容"],
		followInfo["月費"],
		followInfo["金額"],
		followInfo["日期"],
		followInfo["時間"],
		followInfo["__raw__"],
	}
	for _, rec := range records {
		if ctxText := record.CleanText(rec.Get("followContext")); ctxText != "" {
			texts = append(texts, ctxText)
		}
	}

	candidates := dates.ExtractAll(texts...)
	if len(candidates) == 0 {
		return ""
	}

	unique := uniqueSorted(candidates)
	if latest, ok := dates.Parse(latestServiceISO); ok {
		var afterLatest []time.Time
		for _, d := range unique {
			if d.After(latest) {
				afterLatest = append(afterLatest, d)
			}
		}
		if len(afterLatest) >= 2 {
			return dates.ISO(afterLatest[len(afterLatest)-2])
		}
		if len(afterLatest) == 1 {
			return dates.ISO(afterLatest[0])
		}
	}

	today = dates.Truncate(today)
	for _, d := range unique {
		if !d.Before(today) {
			return dates.ISO(d)
		}
	}
	return dates.ISO(unique[len(unique)-1])
}

// PaymentStatus returns the newest past cashier follow-up as "date · note",
// or just the date when the entry has no note.
func PaymentStatus(records []record.Record, today time.Time) string {
	today = dates.Truncate(today)

	var best record.Record
	var bestDate time.Time
	for _, rec := range records {
		if record.CleanText(rec.Get("ower_name")) != cashierOwner {
			continue
		}
		d, ok := dates.Parse(record.FirstNonEmpty(rec.Get("followTime"), rec.Get("createTime")))
		if !ok || d.After(today) {
			continue
		}
		if best == nil || d.After(bestDate) {
			best = rec
			bestDate = d
		}
	}
	if best == nil {
		return ""
	}

	note := record.FirstNonEmpty(best.Get("followContext"), best.Get("remark"))
	dateText := record.CleanText(best.Get("followTime"))
	if dateText == "" {
		dateText = dates.ISO(bestDate)
	}
	if note != "" {
		return dateText + " · " + note
	}
	return dateText
}

func containsMarker(v any, marker string) bool {
	text := record.CleanText(v)
	return text != "" && marker != "" && strings.Contains(text, marker)
}

func minDate(ds []time.Time) time.Time {
	m := ds[0]
	for _, d := range ds[1:] {
		if d.Before(m) {
			m = d
		}
	}
	return m
}

func maxDate(ds []time.Time) time.Time {
	m := ds[0]
	for _, d := range ds[1:] {
		if d.After(m) {
			m = d
		}
	}
	return m
}

func uniqueSorted(ds []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(ds))
	var out []time.Time
	for _, d := range ds {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
