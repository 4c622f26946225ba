package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-sync-service/internal/clients"
)

const exportSheet = "Products"

var exportColumns = []string{
	"product_id", "handle", "title", "status", "product_type", "tags", "description",
	"variant_id", "sku", "option1", "option2", "option3", "price", "inventory_quantity", "image_url",
}

// ExportService walks the full remote catalog.
type ExportService struct {
	client  clients.CatalogClient
	retrier *clients.Retrier
	logger  *logrus.Entry
}

// NewExportService creates a new export service
func NewExportService(client clients.CatalogClient, retrier *clients.Retrier, logger *logrus.Logger) *ExportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if retrier == nil {
		retrier = clients.NewRetrier(clients.DefaultRetryConfig())
	}
	return &ExportService{
		client:  client,
		retrier: retrier,
		logger:  logger.WithField("component", "catalog-export"),
	}
}

// Collect follows rel="next" pagination until the last page and returns every product.
func (s *ExportService) Collect(ctx context.Context) ([]clients.Product, error) {
	var all []clients.Product
	cursor := ""
	for page := 1; ; page++ {
		var result *clients.ProductsResult
		res := s.retrier.Do(ctx, "export products", func(ctx context.Context) (int, error) {
			var err error
			result, err = s.client.ListProducts(ctx, &clients.ListOptions{Limit: 250, Cursor: cursor})
			return clients.StatusCode(err), err
		})
		if res.LastError != nil {
			return nil, fmt.Errorf("export page %d: %w", page, res.LastError)
		}
		all = append(all, result.Products...)
		if !result.HasMore || result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	s.logger.WithField("products", len(all)).Info("Catalog collected")
	return all, nil
}

// WriteXLSX renders products as a workbook with one row per variant.
func (s *ExportService) WriteXLSX(products []clients.Product, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, col)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(exportSheet, colName, colName, 18)
	}

	row := 2
	for _, p := range products {
		imageURL := ""
		if img := p.PrimaryImage(); img != nil {
			imageURL = img.Src
		}
		base := []interface{}{p.ID, p.Handle, p.Title, string(p.Status), p.ProductType, strings.Join(p.Tags, ", "), p.BodyHTML}
		simple := p.IsSimple()
		if len(p.Variants) == 0 {
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &base); err != nil {
				return err
			}
			row++
			continue
		}
		for _, v := range p.Variants {
			variantImage := imageURL
			if img := p.ImageByID(v.ImageID); img != nil {
				variantImage = img.Src
			}
			options := v.OptionValues()
			if simple {
				options = [3]string{}
			}
			values := append(append([]interface{}{}, base...),
				v.ID, v.SKU, options[0], options[1], options[2], v.Price, v.InventoryQuantity, variantImage)
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &values); err != nil {
				return err
			}
			row++
		}
	}

	return f.Write(w)
}
