package service

import (
	"context"
	"fmt"
	"time"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/internal/policy"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"go.uber.org/zap"
)

// ProductType is the stored product discriminator.
type ProductType string

const (
	TypeAccessControl ProductType = "access_control"
	TypeGateEngine    ProductType = "gate_engine"
	TypePoles         ProductType = "poles"
	TypeFence         ProductType = "fence"
	TypeGate          ProductType = "gate"
	TypeGadgets       ProductType = "gadgets"
)

// Gate types.
const (
	GateTypePush     = "push"
	GateTypeTwoGates = "two_gates"
)

// ProductInput is the superset request body for every product variant.
type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Type        string   `json:"type"`
	Image       *string  `json:"image"`
	Color       *string  `json:"color"`
	Quantity    *int     `json:"quantity"`
	Width       *float64 `json:"width"`
	Length      *float64 `json:"length"`
	Height      *float64 `json:"height"`
	Connection  *string  `json:"connection"`
	Relays      *int     `json:"relays"`
	GateType    *string  `json:"gateType"`
	FillType    *string  `json:"fillType"`
	Fast        *bool    `json:"fast"`
}

// ProductResponse carries the shared fields plus only the fields valid for
// the product's variant.
type ProductResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Type        string    `json:"type"`
	Image       *string   `json:"image,omitempty"`
	Color       *string   `json:"color,omitempty"`
	Quantity    *int      `json:"quantity,omitempty"`
	Width       *float64  `json:"width,omitempty"`
	Length      *float64  `json:"length,omitempty"`
	Height      *float64  `json:"height,omitempty"`
	Connection  *string   `json:"connection,omitempty"`
	Relays      *int      `json:"relays,omitempty"`
	GateType    *string   `json:"gateType,omitempty"`
	FillType    *string   `json:"fillType,omitempty"`
	Fast        *bool     `json:"fast,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Variant is one of AccessControl, GateEngine, Poles, Fence, Gate or
// Gadgets. Each holds only the optional attributes its type uses.
type Variant interface {
	Type() ProductType
	apply(p *models.Product)
	describe(r *ProductResponse)
}

type AccessControl struct {
	Connection *string
	Relays     *int
}

type GateEngine struct {
	GateType *string
	Fast     *bool
}

type Poles struct {
	Width  *float64
	Length *float64
	Height *float64
}

type Fence struct {
	FillType *string
}

type Gate struct {
	GateType *string
}

type Gadgets struct {
	Connection *string
	Relays     *int
}

func (AccessControl) Type() ProductType { return TypeAccessControl }
func (GateEngine) Type() ProductType    { return TypeGateEngine }
func (Poles) Type() ProductType         { return TypePoles }
func (Fence) Type() ProductType         { return TypeFence }
func (Gate) Type() ProductType          { return TypeGate }
func (Gadgets) Type() ProductType       { return TypeGadgets }

func (v AccessControl) apply(p *models.Product) { p.Connection, p.Relays = v.Connection, v.Relays }
func (v GateEngine) apply(p *models.Product)    { p.GateType, p.Fast = v.GateType, v.Fast }
func (v Poles) apply(p *models.Product)         { p.Width, p.Length, p.Height = v.Width, v.Length, v.Height }
func (v Fence) apply(p *models.Product)         { p.FillType = v.FillType }
func (v Gate) apply(p *models.Product)          { p.GateType = v.GateType }
func (v Gadgets) apply(p *models.Product)       { p.Connection, p.Relays = v.Connection, v.Relays }

func (v AccessControl) describe(r *ProductResponse) { r.Connection, r.Relays = v.Connection, v.Relays }
func (v GateEngine) describe(r *ProductResponse)    { r.GateType, r.Fast = v.GateType, v.Fast }
func (v Poles) describe(r *ProductResponse)         { r.Width, r.Length, r.Height = v.Width, v.Length, v.Height }
func (v Fence) describe(r *ProductResponse)         { r.FillType = v.FillType }
func (v Gate) describe(r *ProductResponse)          { r.GateType = v.GateType }
func (v Gadgets) describe(r *ProductResponse)       { r.Connection, r.Relays = v.Connection, v.Relays }

// NewVariant selects the variant named by in.Type and copies the fields it
// owns. Unknown types yield *apperr.UnsupportedTypeError.
func NewVariant(in ProductInput) (Variant, error) {
	switch ProductType(in.Type) {
	case TypeAccessControl:
		return AccessControl{Connection: in.Connection, Relays: in.Relays}, nil
	case TypeGateEngine:
		return GateEngine{GateType: in.GateType, Fast: in.Fast}, nil
	case TypePoles:
		return Poles{Width: in.Width, Length: in.Length, Height: in.Height}, nil
	case TypeFence:
		return Fence{FillType: in.FillType}, nil
	case TypeGate:
		return Gate{GateType: in.GateType}, nil
	case TypeGadgets:
		return Gadgets{Connection: in.Connection, Relays: in.Relays}, nil
	default:
		return nil, &apperr.UnsupportedTypeError{Type: in.Type}
	}
}

// variantOf reads the variant stored in p.
func variantOf(p models.Product) (Variant, error) {
	return NewVariant(ProductInput{
		Type:       p.Type,
		Width:      p.Width,
		Length:     p.Length,
		Height:     p.Height,
		Connection: p.Connection,
		Relays:     p.Relays,
		GateType:   p.GateType,
		FillType:   p.FillType,
		Fast:       p.Fast,
	})
}

func validateProduct(in ProductInput) error {
	if blank(in.Name) {
		return apperr.Validation("name", "name is required")
	}
	if in.Price <= 0 {
		return apperr.Validation("price", "price must be > 0")
	}
	if err := checkAmount("price", "price", in.Price); err != nil {
		return err
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return apperr.Validation("quantity", "quantity must be >= 0")
	}
	if in.GateType != nil && *in.GateType != GateTypePush && *in.GateType != GateTypeTwoGates {
		return apperr.Validation("gateType", "gateType must be push or two_gates")
	}
	return nil
}

// applyShared copies the fields every variant has.
func applyShared(p *models.Product, in ProductInput) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Image = in.Image
	p.Color = in.Color
	p.Quantity = in.Quantity
}

// buildProduct materializes a new product row from in.
func buildProduct(in ProductInput) (models.Product, error) {
	variant, err := NewVariant(in)
	if err != nil {
		return models.Product{}, err
	}
	if err := validateProduct(in); err != nil {
		return models.Product{}, err
	}
	p := models.Product{Type: string(variant.Type())}
	applyShared(&p, in)
	variant.apply(&p)
	return p, nil
}

// mergeProduct applies an update to stored. Shared fields always change;
// variant fields change only when in.Type equals the stored type, and the
// stored type itself never changes.
func mergeProduct(stored models.Product, in ProductInput) models.Product {
	applyShared(&stored, in)
	if in.Type == stored.Type {
		if variant, err := NewVariant(in); err == nil {
			variant.apply(&stored)
		}
	}
	return stored
}

func productResponse(p models.Product) ProductResponse {
	r := ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Type:        p.Type,
		Image:       p.Image,
		Color:       p.Color,
		Quantity:    p.Quantity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if variant, err := variantOf(p); err == nil {
		variant.describe(&r)
	}
	return r
}

type ProductService struct {
	db  *runtime.DB
	log *zap.Logger
}

func (s *ProductService) List(ctx context.Context) ([]ProductResponse, error) {
	products, err := builder.Select[models.Product](s.db).OrderByAsc("id").All(ctx)
	if err != nil {
		return nil, apperr.Store("list products", err)
	}
	resp := make([]ProductResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse(p)
	}
	return resp, nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (ProductResponse, error) {
	p, err := findByID[models.Product](ctx, s.db, "product", id)
	if err != nil {
		return ProductResponse{}, apperr.Store("get product", err)
	}
	return productResponse(p), nil
}

// Create stores a new product of the variant named by in.Type.
func (s *ProductService) Create(ctx context.Context, principal auth.Principal, in ProductInput) (ProductResponse, error) {
	if err := policy.CanEditCatalog(principal); err != nil {
		return ProductResponse{}, err
	}
	p, err := buildProduct(in)
	if err != nil {
		return ProductResponse{}, err
	}

	var created models.Product
	err = s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		created, err = builder.Insert[models.Product](tx).Values(p).One(ctx)
		return err
	})
	if err != nil {
		return ProductResponse{}, apperr.Store("create product", err)
	}

	s.log.Info("product created", zap.Int64("product_id", created.ID), zap.String("type", created.Type))
	return productResponse(created), nil
}

// Update changes an existing product; see mergeProduct.
func (s *ProductService) Update(ctx context.Context, principal auth.Principal, id int64, in ProductInput) (ProductResponse, error) {
	if err := policy.CanEditCatalog(principal); err != nil {
		return ProductResponse{}, err
	}
	if err := validateProduct(in); err != nil {
		return ProductResponse{}, err
	}

	var updated models.Product
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		stored, err := builder.Select[models.Product](tx).Where(builder.Eq("id", id)).ForUpdate().First(ctx)
		if runtime.IsNotFound(err) {
			return apperr.NotFound("product", id)
		}
		if err != nil {
			return err
		}

		merged := mergeProduct(stored, in)
		rows, err := builder.Update[models.Product](tx).
			Set("name", merged.Name).
			Set("description", merged.Description).
			Set("price", merged.Price).
			Set("image", merged.Image).
			Set("color", merged.Color).
			Set("quantity", merged.Quantity).
			Set("width", merged.Width).
			Set("length", merged.Length).
			Set("height", merged.Height).
			Set("connection", merged.Connection).
			Set("relays", merged.Relays).
			Set("gate_type", merged.GateType).
			Set("fill_type", merged.FillType).
			Set("fast", merged.Fast).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", id)).
			ExecReturning(ctx)
		if err != nil {
			return err
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		return ProductResponse{}, apperr.Store("update product", err)
	}

	s.log.Info("product updated", zap.Int64("product_id", id))
	return productResponse(updated), nil
}

// Delete removes a product. Products still on an order are kept and the
// call fails with a ConflictError.
func (s *ProductService) Delete(ctx context.Context, principal auth.Principal, id int64) error {
	if err := policy.CanDeleteCatalog(principal); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		return deleteByID[models.Product](ctx, tx, "product", id,
			fmt.Sprintf("Product %d is referenced by existing orders.", id))
	})
	if err != nil {
		return apperr.Store("delete product", err)
	}
	s.log.Info("product deleted", zap.Int64("product_id", id))
	return nil
}
