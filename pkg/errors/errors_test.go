package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeItemNotFound, status: http.StatusNotFound, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, detailsOK: true},
		{code: CodeVersionConflict, status: http.StatusConflict, retryable: true},
		{code: CodeInvalidOrder, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s has no public message", tt.code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if Wrap(CodeConflict, nil, "ctx").Unwrap() != nil {
		t.Fatalf("wrapping nil should produce a plain error")
	}
}

func TestHasCodeAndRetryableThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("save cart: %w", New(CodeVersionConflict, "stale"))
	if !HasCode(err, CodeVersionConflict) {
		t.Fatalf("expected version conflict code in chain")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatalf("unexpected not found code")
	}
	if !IsRetryable(err) {
		t.Fatalf("version conflicts should be retryable")
	}
	if IsRetryable(New(CodeInsufficientStock, "gone")) {
		t.Fatalf("stock failures must not be retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatalf("untyped errors are not retryable")
	}
}

func TestDumpCapturesPgDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_carts_user_id", TableName: "carts", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create cart")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_carts_user_id" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
}

func TestDumpCapturesLibPQDiagnosticsAndDetails(t *testing.T) {
	pqErr := &pq.Error{Code: "23503", Constraint: "fk_cart_items_cart", Table: "cart_items"}
	err := Wrap(CodeInsufficientStock, pqErr, "reserve").WithDetails(map[string]int{"available": 0})

	dump := Dump(err)
	if dump.PGCode != "23503" || dump.PGTable != "cart_items" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if dump.Retryable {
		t.Fatal("stock errors are not retryable")
	}
	if dump.Details == nil {
		t.Fatal("expected details in dump")
	}
}
