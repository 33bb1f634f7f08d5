package validation

import (
	"errors"
	"testing"
)

type itemRequest struct {
	Name        string `validate:"required"`
	PaymentMode string `validate:"omitempty,oneof=Cash Card UPI"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		req    itemRequest
		fields []string
	}{
		{
			name: "valid",
			req:  itemRequest{Name: "Pen", PaymentMode: "UPI"},
		},
		{
			name:   "missing name",
			req:    itemRequest{PaymentMode: "Cash"},
			fields: []string{"name"},
		},
		{
			name:   "unknown payment mode",
			req:    itemRequest{Name: "Pen", PaymentMode: "Cheque"},
			fields: []string{"paymentMode"},
		},
		{
			name:   "both invalid",
			req:    itemRequest{PaymentMode: "Bitcoin"},
			fields: []string{"name", "paymentMode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}

			var verrs Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("Struct() error = %v, want Errors", err)
			}
			if len(verrs) != len(tt.fields) {
				t.Fatalf("got %d field errors, want %d: %v", len(verrs), len(tt.fields), verrs)
			}
			for i, f := range tt.fields {
				if verrs[i].Field != f {
					t.Fatalf("field[%d] = %q, want %q", i, verrs[i].Field, f)
				}
			}
		})
	}
}
