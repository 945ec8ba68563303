package models

import "sort"

// SummaryLatestLimit is the number of recent documents a summary carries.
const SummaryLatestLimit = 5

// Summary is the dashboard view of the documents visible to one department.
type Summary struct {
	Total        int            `json:"total_documents"`
	ByStatus     map[string]int `json:"by_status"`
	ByDepartment map[string]int `json:"by_department"`
	Latest       []*Document    `json:"latest"`
}

// Summarize counts docs by status and by custodian and keeps the most recently
// created ones.
func Summarize(docs []*Document, latest int) Summary {
	s := Summary{
		Total:        len(docs),
		ByStatus:     make(map[string]int),
		ByDepartment: make(map[string]int),
	}
	for _, d := range docs {
		s.ByStatus[d.Status]++
		s.ByDepartment[d.CurrentDepartment]++
	}

	sorted := append([]*Document(nil), docs...)
	SortNewestFirst(sorted)
	if len(sorted) > latest {
		sorted = sorted[:latest]
	}
	s.Latest = sorted
	return s
}

// SortNewestFirst orders documents by creation time descending, then id descending.
func SortNewestFirst(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

// SortHistory orders events by timestamp, ties broken by id.
func SortHistory(events []AuditEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(&events[j])
	})
}
