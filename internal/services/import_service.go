package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-sync-service/internal/clients"
)

// ImportConfig controls bulk import behavior
type ImportConfig struct {
	MaxItems         int
	BreakerThreshold int
	BreakerReset     time.Duration
}

// DefaultImportConfig returns production-ready defaults
func DefaultImportConfig() *ImportConfig {
	return &ImportConfig{
		MaxItems:         500,
		BreakerThreshold: 5,
		BreakerReset:     time.Minute,
	}
}

// ImportService creates many products sequentially. Each item is retried only when the
// remote rate-limits it; repeated remote failures open a breaker that skips the rest.
type ImportService struct {
	products *ProductService
	retrier  *clients.Retrier
	config   *ImportConfig
	logger   *logrus.Entry
}

// NewImportService creates a new import service
func NewImportService(products *ProductService, retrier *clients.Retrier, cfg *ImportConfig, logger *logrus.Logger) *ImportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if retrier == nil {
		retrier = clients.NewRetrier(clients.DefaultRetryConfig())
	}
	if cfg == nil {
		cfg = DefaultImportConfig()
	}
	return &ImportService{
		products: products,
		retrier:  retrier,
		config:   cfg,
		logger:   logger.WithField("component", "bulk-import"),
	}
}

// Import creates every item in order. When any item does not succeed the outcomes are also
// returned as a *PartialFailure.
func (s *ImportService) Import(ctx context.Context, items []ProductInput) ([]ItemOutcome, error) {
	if len(items) == 0 {
		return nil, invalid("items", "at least one product is required")
	}
	if len(items) > s.config.MaxItems {
		return nil, invalid("items", fmt.Sprintf("at most %d products per import", s.config.MaxItems))
	}

	breaker := clients.NewCircuitBreaker(s.config.BreakerThreshold, s.config.BreakerReset)
	outcomes := make([]ItemOutcome, len(items))
	failed := 0

	for i := range items {
		item := &items[i]
		out := ItemOutcome{Index: i, Title: item.Title}

		if ctx.Err() != nil {
			out.Status = ItemSkipped
			out.Error = ctx.Err().Error()
		} else if !breaker.Allow() {
			out.Status = ItemSkipped
			out.Error = "skipped: too many consecutive remote failures"
		} else {
			var result *WriteResult
			res := s.retrier.Do(ctx, "import product", func(ctx context.Context) (int, error) {
				var err error
				result, err = s.products.Create(ctx, item)
				return clients.StatusCode(err), err
			})
			out.Attempts = res.Attempts

			var verr *ValidationError
			switch {
			case res.LastError == nil:
				breaker.RecordSuccess()
				out.Status = ItemSucceeded
				out.ProductID = result.Product.ID
				if result.Partial() {
					out.Error = "created with side-effect failures"
				}
			case errors.As(res.LastError, &verr):
				out.Status = ItemFailed
				out.Error = res.LastError.Error()
			default:
				breaker.RecordFailure()
				out.Status = ItemFailed
				out.Error = res.LastError.Error()
			}
		}

		if out.Status != ItemSucceeded {
			failed++
		}
		outcomes[i] = out
	}

	s.logger.WithFields(logrus.Fields{
		"total":   len(items),
		"failed":  failed,
		"breaker": breaker.State().String(),
	}).Info("Bulk import finished")

	if failed > 0 {
		return outcomes, &PartialFailure{Items: outcomes}
	}
	return outcomes, nil
}

// ParseXLSX reads import rows from the first sheet (or the one named "Products").
// Consecutive rows with the same or an empty title are variants of one product; a product
// with a single row and no option values (or only "Default Title") becomes a simple product.
func ParseXLSX(r io.Reader) ([]ProductInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, invalid("file", fmt.Sprintf("failed to open Excel file: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, invalid("file", "no sheets found in Excel file")
	}
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, exportSheet) {
			sheetName = name
			break
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, invalid("file", "file must have a header row and at least one data row")
	}

	headers := rows[0]
	for i := range headers {
		headers[i] = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(headers[i])), " *")
	}

	var products []ProductInput
	var current *ProductInput
	fields := make(map[string]string)

	for idx, raw := range rows[1:] {
		rowNum := idx + 2
		row := make(map[string]string, len(headers))
		for i, value := range raw {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}

		title := row["title"]
		if current == nil || (title != "" && title != current.Title) {
			if title == "" {
				fields[fmt.Sprintf("row %d", rowNum)] = "title is required"
				continue
			}
			products = append(products, ProductInput{
				Title:       title,
				ProductType: row["product_type"],
				Status:      clients.ProductStatus(strings.ToLower(row["status"])),
			})
			current = &products[len(products)-1]
			if d := row["description"]; d != "" {
				current.Description = &d
			}
			if t := row["tags"]; t != "" {
				current.Tags = clients.SplitTags(t)
			}
		}

		v := VariantInput{
			Option1: row["option1"],
			Option2: row["option2"],
			Option3: row["option3"],
			SKU:     row["sku"],
		}
		if p := row["price"]; p != "" {
			price, err := strconv.ParseFloat(p, 64)
			if err != nil {
				fields[fmt.Sprintf("row %d price", rowNum)] = "price must be a number"
			} else {
				v.Price = &price
			}
		}
		q := row["quantity"]
		if q == "" {
			q = row["inventory_quantity"]
		}
		if q != "" {
			qty, err := strconv.Atoi(q)
			if err != nil {
				fields[fmt.Sprintf("row %d quantity", rowNum)] = "quantity must be an integer"
			} else {
				v.Quantity = &qty
			}
		}
		current.Variants = append(current.Variants, v)
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	for i := range products {
		p := &products[i]
		if len(p.Variants) == 1 && isPlaceholderVariant(p.Variants[0]) {
			v := p.Variants[0]
			p.Price, p.Quantity, p.SKU = v.Price, v.Quantity, v.SKU
			p.Variants = nil
		}
	}
	return products, nil
}

func isPlaceholderVariant(v VariantInput) bool {
	opts := v.OptionValues()
	return opts == [3]string{} || (opts == [3]string{clients.DefaultVariantTitle, "", ""})
}
