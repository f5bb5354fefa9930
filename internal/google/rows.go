package google

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"renit/internal/models"
)

const (
	bookingsSheet = "Bookings"
	lastColumn    = "I"
	statusColumn  = "F"
	updatedColumn = "I"
	timeLayout    = "2006-01-02 15:04:05"
)

var bookingHeaders = []interface{}{"ID", "Item ID", "Renter ID", "Start", "End", "Status", "Total", "Created At", "Updated At"}

// rowIndex maps booking ids to 1-based sheet rows so updates skip the column scan.
type rowIndex struct {
	mu   sync.RWMutex
	rows map[int64]int
}

func newRowIndex() *rowIndex {
	return &rowIndex{rows: make(map[int64]int)}
}

func (x *rowIndex) get(id int64) (int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	row, ok := x.rows[id]
	return row, ok
}

func (x *rowIndex) set(id int64, row int) {
	x.mu.Lock()
	x.rows[id] = row
	x.mu.Unlock()
}

func (x *rowIndex) drop(id int64) {
	x.mu.Lock()
	delete(x.rows, id)
	x.mu.Unlock()
}

// load rebuilds the index from column A values; blank and header rows are skipped.
func (x *rowIndex) load(column [][]interface{}) {
	rows := make(map[int64]int, len(column))
	for i, cells := range column {
		if len(cells) == 0 {
			continue
		}
		if id := cellID(cells[0]); id > 0 {
			rows[id] = i + 1
		}
	}
	x.mu.Lock()
	x.rows = rows
	x.mu.Unlock()
}

func rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", bookingsSheet, row, lastColumn, row)
}

func cellRange(column string, row int) string {
	return fmt.Sprintf("%s!%s%d", bookingsSheet, column, row)
}

var rangeRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row of an A1 range such as "Bookings!A10:I10".
func rowFromRange(a1 string) (int, bool) {
	m := rangeRowRe.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	return row, err == nil
}

// cellID reads a booking id from a cell; the API returns numbers as float64
// or, for text-formatted cells, as strings.
func cellID(v interface{}) int64 {
	switch v := v.(type) {
	case float64:
		return int64(v)
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	}
	return 0
}

func formatCents(cents *int64) string {
	if cents == nil {
		return ""
	}
	v, sign := *cents, ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func bookingRowValues(b *models.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.ItemID,
		b.RenterID,
		b.StartTime.UTC().Format(timeLayout),
		b.EndTime.UTC().Format(timeLayout),
		b.Status,
		formatCents(b.TotalPriceCents),
		b.CreatedAt.UTC().Format(timeLayout),
		b.UpdatedAt.UTC().Format(timeLayout),
	}
}
