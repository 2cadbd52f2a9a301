package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubProductService struct {
	created    *productsvc.CreateProductInput
	updated    *productsvc.UpdateProductInput
	stock      *productsvc.StockInput
	listInput  *productsvc.ListProductsInput
	deletedID  uuid.UUID
	getErr     error
	deleteErr  error
	setStockFn func(productsvc.StockInput) error
}

func (s *stubProductService) GetProduct(ctx context.Context, id uuid.UUID) (*productsvc.ProductDTO, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &productsvc.ProductDTO{ID: id, Title: "Tee"}, nil
}

func (s *stubProductService) ListProducts(ctx context.Context, input productsvc.ListProductsInput) (pagination.Page[productsvc.ProductDTO], error) {
	s.listInput = &input
	return pagination.Page[productsvc.ProductDTO]{Items: []productsvc.ProductDTO{{Title: "Tee"}}}, nil
}

func (s *stubProductService) CreateProduct(ctx context.Context, input productsvc.CreateProductInput) (*productsvc.ProductDTO, error) {
	s.created = &input
	return &productsvc.ProductDTO{ID: uuid.New(), SKU: input.SKU, Title: input.Title}, nil
}

func (s *stubProductService) UpdateProduct(ctx context.Context, id uuid.UUID, input productsvc.UpdateProductInput) (*productsvc.ProductDTO, error) {
	s.updated = &input
	return &productsvc.ProductDTO{ID: id}, nil
}

func (s *stubProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stubProductService) SetStock(ctx context.Context, id uuid.UUID, input productsvc.StockInput) (*productsvc.ProductDTO, error) {
	s.stock = &input
	if s.setStockFn != nil {
		if err := s.setStockFn(input); err != nil {
			return nil, err
		}
	}
	return &productsvc.ProductDTO{ID: id}, nil
}

func TestListProductsPassesCategoryAndPagination(t *testing.T) {
	svc := &stubProductService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=shirts&limit=5", nil)
	rec := httptest.NewRecorder()

	ListProducts(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.listInput == nil || svc.listInput.Category != "shirts" || svc.listInput.Pagination.Limit != 5 {
		t.Fatalf("unexpected list input %+v", svc.listInput)
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc := &stubProductService{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "productId", uuid.NewString())
	rec := httptest.NewRecorder()

	GetProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != string(pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected code %s", got.Code)
	}
}

func TestGetProductRejectsInvalidID(t *testing.T) {
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "productId", "not-a-uuid")
	rec := httptest.NewRecorder()

	GetProduct(&stubProductService{}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminCreateProduct(t *testing.T) {
	svc := &stubProductService{}
	body := `{"sku":"TEE-1","title":" Tee ","category":"shirts","price_cents":2500,
		"variants":[{"size":"M","color":"black","quantity":5},{"size":"L","color":"black","quantity":0}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body))
	rec := httptest.NewRecorder()

	AdminCreateProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.created == nil || svc.created.Title != "Tee" || len(svc.created.Variants) != 2 {
		t.Fatalf("unexpected create input %+v", svc.created)
	}
}

func TestAdminCreateProductRequiresVariants(t *testing.T) {
	body := `{"sku":"TEE-1","title":"Tee","category":"shirts","price_cents":2500,"variants":[]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()

	AdminCreateProduct(&stubProductService{}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminUpdateProductPartial(t *testing.T) {
	svc := &stubProductService{}
	req := withURLParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"price_cents":1999}`)), "productId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminUpdateProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.updated == nil || svc.updated.PriceCents == nil || *svc.updated.PriceCents != 1999 || svc.updated.Title != nil {
		t.Fatalf("unexpected update input %+v", svc.updated)
	}
}

func TestAdminDeleteProduct(t *testing.T) {
	svc := &stubProductService{}
	productID := uuid.New()
	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), "productId", productID.String())
	rec := httptest.NewRecorder()

	AdminDeleteProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if svc.deletedID != productID {
		t.Fatalf("expected delete of %s got %s", productID, svc.deletedID)
	}
}

func TestAdminSetProductStockConflict(t *testing.T) {
	svc := &stubProductService{setStockFn: func(productsvc.StockInput) error {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity below reserved units")
	}}
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"size":"M","color":"black","quantity":1}`)), "productId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminSetProductStock(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if svc.stock == nil || svc.stock.Quantity != 1 {
		t.Fatalf("unexpected stock input %+v", svc.stock)
	}
}
