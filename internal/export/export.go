// Package export renders bookings as XLSX workbooks.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Bookings"
	dateLayout = "2006-01-02 15:04"
)

var headers = []string{"ID", "Renter", "Start", "End", "Status", "Total"}

type Exporter struct {
	users  domain.UserStore
	dir    string
	logger *zerolog.Logger
}

func NewExporter(users domain.UserStore, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{users: users, dir: dir, logger: logger}
}

// Workbook builds a single-sheet workbook listing the item's bookings. The
// caller owns the returned file and must close it.
func (e *Exporter) Workbook(ctx context.Context, item *models.Item, bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// Title row with the item name
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s (#%d)", item.Title, item.ID))
	_ = f.MergeCell(sheetName, "A1", "F1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00

	names := make(map[int64]string)
	for i, b := range bookings {
		row := i + 3
		renter, err := e.renterName(ctx, names, b.RenterID)
		if err != nil {
			_ = f.Close()
			return nil, err
		}

		values := []interface{}{
			b.ID,
			renter,
			b.StartTime.UTC().Format(dateLayout),
			b.EndTime.UTC().Format(dateLayout),
			b.Status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		totalCell, _ := excelize.CoordinatesToCellName(len(headers), row)
		if b.TotalPriceCents != nil {
			_ = f.SetCellValue(sheetName, totalCell, float64(*b.TotalPriceCents)/100)
			_ = f.SetCellStyle(sheetName, totalCell, totalCell, moneyStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "B", 25)
	_ = f.SetColWidth(sheetName, "C", "D", 20)
	_ = f.SetColWidth(sheetName, "E", "F", 14)

	return f, nil
}

// Write streams the workbook to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, item *models.Item, bookings []*models.Booking) error {
	f, err := e.Workbook(ctx, item, bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// Save stores the workbook under the exports directory and returns its path.
func (e *Exporter) Save(ctx context.Context, item *models.Item, bookings []*models.Booking) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Workbook(ctx, item, bookings)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(e.dir, FileName(item.ID, time.Now()))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	if e.logger != nil {
		e.logger.Info().Str("file_path", filePath).Int64("item_id", item.ID).Msg("Excel file created")
	}
	return filePath, nil
}

func FileName(itemID int64, at time.Time) string {
	return fmt.Sprintf("item_%d_bookings_%s.xlsx", itemID, at.UTC().Format("20060102_150405"))
}

func (e *Exporter) renterName(ctx context.Context, cache map[int64]string, id int64) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	user, err := e.users.GetUserByID(ctx, id)
	switch {
	case err == nil:
		cache[id] = user.Username
	case errors.Is(err, domain.ErrNotFound):
		cache[id] = fmt.Sprintf("#%d", id)
	default:
		return "", fmt.Errorf("error getting renter %d: %w", id, err)
	}
	return cache[id], nil
}
