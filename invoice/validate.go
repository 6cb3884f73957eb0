package invoice

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// DRAFTS - Incoming payloads, validated before any write
// =============================================================================

type Draft struct {
	Direction      Direction       `validate:"required,oneof=purchase sale"`
	Date           time.Time
	CounterpartyID int64           `validate:"gt=0"`
	Discount       decimal.Decimal `validate:"gte=0"`
	PaidAmount     decimal.Decimal `validate:"gte=0"`
	Note           string          `validate:"max=1000"`
	MemoNo         string          `validate:"max=100"`
	Lines          []DraftLine     `validate:"required,min=1,dive"`
}

type DraftLine struct {
	ProductID int64           `validate:"gt=0"`
	Quantity  int64           `validate:"gt=0"`
	UnitPrice decimal.Decimal `validate:"gte=0"`
}

type PaymentDraft struct {
	InvoiceID ledger.InvoiceID `validate:"gt=0"`
	Date      time.Time
	Amount    decimal.Decimal `validate:"gte=0"`
	Discount  decimal.Decimal `validate:"gte=0"`
	Account   string          `validate:"omitempty,oneof=cash bank"`
	Note      string          `validate:"max=1000"`
}

type ReturnDraft struct {
	InvoiceID         ledger.InvoiceID `validate:"gt=0"`
	Date              time.Time
	Note              string          `validate:"max=1000"`
	Lines             []DraftLine     `validate:"required,min=1,dive"`
	Settlement        decimal.Decimal `validate:"gte=0"`
	SettlementAccount string          `validate:"omitempty,oneof=cash bank"`
}

func (d Draft) lines() []Line {
	return toLines(d.Lines)
}

func toLines(ds []DraftLine) []Line {
	lines := make([]Line, len(ds))
	for i, l := range ds {
		lines[i] = Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return lines
}

// =============================================================================
// VALIDATOR
// =============================================================================

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func draftValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Decimals are compared numerically by the gte/gt tags.
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// validateStruct runs the struct tags and converts failures into a
// validation error listing each offending field.
func validateStruct(op string, s any) error {
	err := draftValidator().Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return ledger.Validation(op, "%v", err)
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		name := fe.Namespace()
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		fields[name] = fe.Tag()
	}
	return ledger.ValidationFields(op, fields)
}

func ValidateDraft(d Draft) error {
	const op = "invoice.ValidateDraft"
	if err := validateStruct(op, d); err != nil {
		return err
	}
	if d.Date.IsZero() {
		return ledger.ValidationFields(op, map[string]string{"Date": "required"})
	}
	return nil
}

func ValidatePayment(p PaymentDraft) error {
	const op = "invoice.ValidatePayment"
	if err := validateStruct(op, p); err != nil {
		return err
	}
	if p.Date.IsZero() {
		return ledger.ValidationFields(op, map[string]string{"Date": "required"})
	}
	if !p.Amount.IsPositive() && !p.Discount.IsPositive() {
		return ledger.Validation(op, "payment needs a positive amount or discount")
	}
	return nil
}

func ValidateReturn(r ReturnDraft) error {
	const op = "invoice.ValidateReturn"
	if err := validateStruct(op, r); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return ledger.ValidationFields(op, map[string]string{"Date": "required"})
	}
	return nil
}
