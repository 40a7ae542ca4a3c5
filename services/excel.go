package services

import (
	"fmt"
	"strconv"

	"learnhub/models"

	"github.com/xuri/excelize/v2"
)

// BuildPaymentsReport renders payments into an xlsx workbook for the admin
// export endpoint. Amounts stay in minor units; the sheet carries them as
// plain integers.
func BuildPaymentsReport(payments []models.Payment) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"Payment ID", "User ID", "Course ID", "Order ID", "Gateway Payment ID",
		"Amount (minor units)", "Currency", "Status", "Enrollment ID", "Paid At", "Created At",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("error building header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("error writing header: %w", err)
		}
	}

	for row, p := range payments {
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			p.ID, p.UserID, p.CourseID, p.GatewayOrderID, p.GatewayPaymentID,
			strconv.FormatInt(p.Amount, 10), p.Currency, p.Status, p.EnrollmentID,
			paidAt, p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("error building cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("error writing row %d: %w", row+2, err)
			}
		}
	}

	return f, nil
}
