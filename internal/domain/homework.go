package domain

// SetHomeworkCompleted updates every piece of id across all weeks. Weeks and
// days that do not hold id are reused as they are.
func SetHomeworkCompleted(weeks []WeekBucket[Homework], id string, completed bool) ([]WeekBucket[Homework], bool) {
	found := false
	next := make([]WeekBucket[Homework], len(weeks))
	copy(next, weeks)

	for w := range next {
		for d, day := range next[w].Days {
			if !containsID(day.Items, id) {
				continue
			}

			items := make([]Homework, len(day.Items))
			copy(items, day.Items)
			for i := range items {
				if items[i].ID == id {
					items[i].Completed = completed
				}
			}
			next[w].Days[d].Items = items
			found = true
		}
	}

	if !found {
		return weeks, false
	}

	return next, true
}
