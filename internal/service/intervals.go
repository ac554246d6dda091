package service

import "github.com/Freeeeeet/clinic_scheduler/internal/model"

// interval полуоткрытый интервал локального времени [start,end)
type interval struct {
	start, end model.TimeOfDay
}

func (i interval) overlaps(o interval) bool {
	return i.start < o.end && o.start < i.end
}

// occupancy занятые за один день интервалы. Правил в шаблоне мало, хватает линейного поиска.
type occupancy []interval

func (o occupancy) conflicts(i interval) bool {
	for _, it := range o {
		if it.overlaps(i) {
			return true
		}
	}
	return false
}

func (o *occupancy) reserve(items ...interval) {
	*o = append(*o, items...)
}

// sliceWindow режет окно на куски по durationMinutes, неполный хвост отбрасывается
func sliceWindow(start, end model.TimeOfDay, durationMinutes int) []interval {
	if durationMinutes <= 0 {
		return nil
	}
	var chunks []interval
	for cur := start; cur.Add(durationMinutes) <= end; cur = cur.Add(durationMinutes) {
		chunks = append(chunks, interval{start: cur, end: cur.Add(durationMinutes)})
	}
	return chunks
}
