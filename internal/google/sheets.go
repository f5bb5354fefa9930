package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"renit/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrRowNotFound = errors.New("booking row not found")

const valueInputRaw = "RAW"

// SheetsService mirrors bookings into a spreadsheet, one row per booking,
// keyed by the booking id in column A.
type SheetsService struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	index         *rowIndex
}

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(raw, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return newSheetsService(srv, spreadsheetID), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string) *SheetsService {
	s := &SheetsService{spreadsheetID: spreadsheetID, index: newRowIndex()}
	if srv != nil {
		s.values = srv.Spreadsheets.Values
	}
	return s
}

// ServiceAccountEmail returns client_email from a key file: the address the
// spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// TestConnection checks access to the spreadsheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	if _, err := s.values.Get(s.spreadsheetID, cellRange("A", 1)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets connection test: %w", err)
	}
	return nil
}

func (s *SheetsService) idColumn(ctx context.Context) ([][]interface{}, error) {
	resp, err := s.values.Get(s.spreadsheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read id column: %w", err)
	}
	return resp.Values, nil
}

// WarmUpCache indexes every booking row currently in the sheet and writes the
// header row into an empty sheet.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	column, err := s.idColumn(ctx)
	if err != nil {
		return err
	}
	if len(column) == 0 {
		header := &sheets.ValueRange{Values: [][]interface{}{bookingHeaders}}
		if _, err := s.values.Update(s.spreadsheetID, rowRange(1), header).ValueInputOption(valueInputRaw).Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	s.index.load(column)
	return nil
}

// FindBookingRow returns the 1-based row holding bookingID, scanning column A
// on an index miss.
func (s *SheetsService) FindBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, errors.New("booking id is required")
	}
	if row, ok := s.index.get(bookingID); ok {
		return row, nil
	}

	column, err := s.idColumn(ctx)
	if err != nil {
		return 0, err
	}
	s.index.load(column)
	if row, ok := s.index.get(bookingID); ok {
		return row, nil
	}
	return 0, fmt.Errorf("booking %d: %w", bookingID, ErrRowNotFound)
}

// UpsertBooking rewrites the booking's row, appending one when the booking
// is not in the sheet yet.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return errors.New("booking is nil")
	}
	values := &sheets.ValueRange{Values: [][]interface{}{bookingRowValues(booking)}}

	row, err := s.FindBookingRow(ctx, booking.ID)
	switch {
	case errors.Is(err, ErrRowNotFound):
		return s.appendRow(ctx, booking.ID, values)
	case err != nil:
		return err
	}

	_, err = s.values.Update(s.spreadsheetID, rowRange(row), values).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	return err
}

func (s *SheetsService) appendRow(ctx context.Context, bookingID int64, values *sheets.ValueRange) error {
	resp, err := s.values.Append(s.spreadsheetID, bookingsSheet+"!A:A", values).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking %d: %w", bookingID, err)
	}
	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.index.set(bookingID, row)
		}
	}
	return nil
}

// DeleteBookingRow clears the booking's row. The row itself stays so the
// indexes of the rows below remain valid.
func (s *SheetsService) DeleteBookingRow(ctx context.Context, bookingID int64) error {
	row, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}
	if _, err := s.values.Clear(s.spreadsheetID, rowRange(row), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear booking %d: %w", bookingID, err)
	}
	s.index.drop(bookingID)
	return nil
}

// UpdateBookingStatus rewrites the status and updated-at cells of a booking row.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	row, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputRaw,
		Data: []*sheets.ValueRange{
			{Range: cellRange(statusColumn, row), Values: [][]interface{}{{status}}},
			{Range: cellRange(updatedColumn, row), Values: [][]interface{}{{time.Now().UTC().Format(timeLayout)}}},
		},
	}
	_, err = s.values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}
