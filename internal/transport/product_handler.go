package transport

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxUploadSize bounds a product multipart body.
const MaxUploadSize = 10 << 20

var errBadPrice = errors.New("price must be a number")

// ProductHandler handles the /products endpoints
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes mounts /products. Reads are public, writes need an admin.
func (h *ProductHandler) RegisterRoutes(r chi.Router, auth, admin func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth, admin)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.logger.Error("Listing products failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err, "Failed to fetch product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, image, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	if image == nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "Please upload an image")
		return
	}

	product, err := h.products.Create(r.Context(), input, *image)
	if err != nil {
		h.respondServiceError(w, err, "Failed to create product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, image, ok := h.parseForm(w, r)
	if !ok {
		return
	}

	product, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), input, image)
	if err != nil {
		h.respondServiceError(w, err, "Failed to update product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseForm reads the multipart fields and the optional image part. It has
// already answered the request when ok is false.
func (h *ProductHandler) parseForm(w http.ResponseWriter, r *http.Request) (domain.ProductInput, *domain.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.logger.Debug("Multipart parse failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return domain.ProductInput{}, nil, false
	}

	price, err := parsePrice(r.FormValue("price"))
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{{Field: "price", Message: "Value must be a number"}})
		return domain.ProductInput{}, nil, false
	}

	input := domain.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       price,
	}
	if err := middleware.ValidateRequest(input); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return domain.ProductInput{}, nil, false
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil, true
	}
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid image upload")
		return domain.ProductInput{}, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid image upload")
		return domain.ProductInput{}, nil, false
	}
	if len(data) == 0 {
		return input, nil, true
	}

	return input, &domain.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func (h *ProductHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrImageRequired):
		middleware.RespondWithError(w, http.StatusBadRequest, "Please upload an image")
	case errors.Is(err, service.ErrInvalidImage):
		middleware.RespondWithError(w, http.StatusBadRequest, "Unsupported image format")
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errBadPrice
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errBadPrice
	}
	return d, nil
}
