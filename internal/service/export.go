package service

import (
	"context"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"plate-service/internal/model"
)

// ExportGarage renders the principal's posts as an XLSX workbook.
func (s *PlateService) ExportGarage(ctx context.Context, principal model.Principal) ([]byte, error) {
	posts, err := s.ListGarage(ctx, principal)
	if err != nil {
		return nil, err
	}
	return ExportPostsToXLSX(posts)
}

func ExportPostsToXLSX(posts []model.PlatePost) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"id", "plate_display", "plate_canonical", "tags", "created_at", "has_image"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, post := range posts {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, post.ID.String())
		set(2, post.PlateDisplay)
		set(3, post.PlateCanonical)
		set(4, strings.Join(post.Tags, ", "))
		set(5, post.CreatedAt.UTC().Format(time.RFC3339))
		set(6, yesNo(post.HasImage() || post.ImageContentType != nil))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
