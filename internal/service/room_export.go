package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
)

// RoomExportHeader is the header row of the room list workbook.
var RoomExportHeader = []string{
	"ID",
	"Room",
	"Description",
	"Capacity",
	"Facilities",
	"Image",
	"Created",
	"Updated",
}

const roomExportSheet = "Rooms"

// ExportFileName names a workbook generated at t.
func ExportFileName(t time.Time) string {
	return "rooms_" + t.Format("20060102_150405") + ".xlsx"
}

// ExportRooms renders the current room list, newest first, as an XLSX
// workbook. Invalid entries of the list are skipped.
func (s *RoomService) ExportRooms(ctx context.Context) ([]byte, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if list.Malformed {
		s.logger.Warn("Exporting an empty room list, API payload was malformed")
	}
	data, err := GenerateRoomExport(list.Rooms, s.api.ResolveImageURL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Room list exported", zap.Int("rooms", len(list.Rooms)), zap.Int("bytes", len(data)))
	return data, nil
}

// GenerateRoomExport writes rooms to a single-sheet workbook. resolve maps
// image_url values to displayable URLs; nil keeps them as-is.
func GenerateRoomExport(rooms []domain.Room, resolve func(string) string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(roomExportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FDE2E2"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range RoomExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(roomExportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
	}
	if err := f.SetCellStyle(roomExportSheet, "A1", lastHeaderCell(), headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	widths := []float64{8, 28, 48, 10, 12, 48, 12, 12}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(roomExportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range rooms {
		image := r.ImageURL
		if resolve != nil {
			image = resolve(image)
		}
		row := []any{r.ID, r.Name, r.Description, r.Capacity, r.FacilitiesCount, image, r.CreatedAt.String(), r.UpdatedAt.String()}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(roomExportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write room %d: %w", r.ID, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func lastHeaderCell() string {
	cell, _ := excelize.CoordinatesToCellName(len(RoomExportHeader), 1)
	return cell
}
