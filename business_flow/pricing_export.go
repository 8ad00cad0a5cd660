package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/xuri/excelize/v2"
)

const priceHistorySheet = "Price History"

// ExportPriceHistory renders the same entries as GetPriceHistory into an xlsx workbook.
func (f *PricingFlowImpl) ExportPriceHistory(ctx context.Context, req *dto.PriceHistoryRequest) (string, []byte, error) {
	serviceID, entries, err := f.loadHistory(ctx, req)
	if err != nil {
		recordFailure("export_history", err)
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), priceHistorySheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []any{"Recorded At", "Price", "Demand", "Seasonal", "Time Of Day"}
	if err := xl.SetSheetRow(priceHistorySheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	for ri, e := range entries {
		record := []any{
			e.RecordedAt.In(f.loc).Format(time.RFC3339),
			e.Price.InexactFloat64(),
			e.Demand,
			e.Seasonal,
			e.TimeOfDay,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		if err := xl.SetSheetRow(priceHistorySheet, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("price_history_%s.xlsx", serviceID.String())
	return filename, buf.Bytes(), nil
}
