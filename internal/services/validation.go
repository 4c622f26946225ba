package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"catalog-sync-service/internal/clients"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// MediaFile is one uploaded file waiting for the staged upload cycle.
type MediaFile struct {
	Filename    string
	ContentType string
	Size        int64
	Alt         string
	Open        func() (io.ReadCloser, error)
}

// ProductInput is a create or update request. A product is either simple (top-level
// price and quantity) or has an explicit variant list, never both.
type ProductInput struct {
	Title       string                `json:"title" validate:"omitempty,max=255"`
	Description *string               `json:"description"`
	ProductType string                `json:"product_type" validate:"max=255"`
	Tags        []string              `json:"tags"`
	Status      clients.ProductStatus `json:"status" validate:"omitempty,oneof=active draft archived"`
	Price       *float64              `json:"price" validate:"omitempty,gte=0"`
	Quantity    *int                  `json:"quantity" validate:"omitempty,gte=0"`
	SKU         string                `json:"sku" validate:"max=255"`
	LocationID  int64                 `json:"location_id" validate:"gte=0"`
	OptionNames []string              `json:"option_names" validate:"max=3"`
	Variants    []VariantInput        `json:"variants" validate:"omitempty,dive"`

	Media []MediaFile `json:"-"`
}

// UnmarshalJSON accepts location_id as a JSON number or a numeric string.
func (in *ProductInput) UnmarshalJSON(data []byte) error {
	type Alias ProductInput
	aux := struct {
		*Alias
		LocationID json.RawMessage `json:"location_id"`
	}{Alias: (*Alias)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.LocationID) == 0 {
		return nil
	}
	id, err := ParseLocationID(aux.LocationID)
	if err != nil {
		return err
	}
	in.LocationID = id
	return nil
}

// ParseLocationID reads a location id sent as 123, "123" or null.
func ParseLocationID(raw []byte) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return 0, invalid("location_id", "location_id must be an integer")
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, invalid("location_id", "location_id must be an integer")
	}
	return id, nil
}

// VariantInput is one variant of a ProductInput.
type VariantInput struct {
	Option1  string   `json:"option1" validate:"max=255"`
	Option2  string   `json:"option2" validate:"max=255"`
	Option3  string   `json:"option3" validate:"max=255"`
	Price    *float64 `json:"price" validate:"omitempty,gte=0"`
	SKU      string   `json:"sku" validate:"max=255"`
	Quantity *int     `json:"quantity" validate:"omitempty,gte=0"`

	Media []MediaFile `json:"-"`
}

// OptionValues returns the three option slots.
func (v VariantInput) OptionValues() [3]string {
	return [3]string{strings.TrimSpace(v.Option1), strings.TrimSpace(v.Option2), strings.TrimSpace(v.Option3)}
}

func (in *ProductInput) isSimple() bool {
	return len(in.Variants) == 0
}

// ValidateCreate checks a create request.
func ValidateCreate(in *ProductInput) error {
	fields := structErrors(in)
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "title is required"
	}
	if in.isSimple() {
		if in.Price == nil {
			fields["price"] = "price is required for a product without variants"
		}
		if in.Quantity == nil {
			fields["quantity"] = "quantity is required for a product without variants"
		}
	} else {
		checkExclusiveShapes(in, fields)
		for i, v := range in.Variants {
			if v.Price == nil {
				fields[fmt.Sprintf("variants[%d].price", i)] = "price is required"
			}
		}
	}
	return toValidationError(fields)
}

// ValidateUpdate checks an update request. Every field is optional.
func ValidateUpdate(in *ProductInput) error {
	fields := structErrors(in)
	if !in.isSimple() {
		checkExclusiveShapes(in, fields)
	}
	return toValidationError(fields)
}

func checkExclusiveShapes(in *ProductInput, fields map[string]string) {
	if in.Price != nil {
		fields["price"] = "price cannot be combined with variants"
	}
	if in.Quantity != nil {
		fields["quantity"] = "quantity cannot be combined with variants"
	}
	if len(in.Variants) > 100 {
		fields["variants"] = "at most 100 variants are allowed"
	}
	for i, v := range in.Variants {
		if v.OptionValues() == [3]string{} && v.SKU == "" {
			fields[fmt.Sprintf("variants[%d]", i)] = "a variant needs an option value or a sku"
		}
	}
}

func structErrors(s interface{}) map[string]string {
	fields := make(map[string]string)
	err := validate.Struct(s)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, e := range verrs {
		name := e.Namespace()
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		fields[name] = validationMessage(e)
	}
	return fields
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "gte":
		return e.Field() + " must be greater than or equal to " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	}
	return e.Field() + " is invalid"
}

func toValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
