package service

import (
	"context"
	"time"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/internal/policy"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"go.uber.org/zap"
)

type DocumentInput struct {
	OrderID  int64  `json:"orderId"`
	Name     string `json:"name"`
	FilePath string `json:"filePath"`
}

type DocumentResponse struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentService manages order documents. Documents are visible to whoever
// can see their order.
type DocumentService struct {
	db  *runtime.DB
	log *zap.Logger
}

const orderMissing = "OrderId does not exist."

func validateDocument(in DocumentInput) error {
	if in.OrderID <= 0 {
		return apperr.Reference("orderId", orderMissing)
	}
	if blank(in.Name) {
		return apperr.Validation("name", "Document name is required.")
	}
	if blank(in.FilePath) {
		return apperr.Validation("filePath", "FilePath is required.")
	}
	return nil
}

func documentResponse(d models.Document) DocumentResponse {
	return DocumentResponse{
		ID:        d.ID,
		OrderID:   d.OrderID,
		Name:      d.Name,
		FilePath:  d.FilePath,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// checkDocumentOrder requires the target order to exist and be visible.
func checkDocumentOrder(ctx context.Context, q runtime.Querier, p auth.Principal, orderID int64) error {
	order, err := builder.Select[models.Order](q).Where(builder.Eq("id", orderID)).First(ctx)
	if runtime.IsNotFound(err) {
		return apperr.Reference("orderId", orderMissing)
	}
	if err != nil {
		return err
	}
	return policy.CanViewOrder(p, order)
}

// loadVisibleDocument loads a document and checks its order is visible.
func loadVisibleDocument(ctx context.Context, q runtime.Querier, p auth.Principal, id int64) (models.Document, error) {
	doc, err := findByID[models.Document](ctx, q, "document", id)
	if err != nil {
		return doc, err
	}
	if _, err := loadVisibleOrder(ctx, q, p, doc.OrderID); err != nil {
		return doc, err
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, p auth.Principal) ([]DocumentResponse, error) {
	var docs []models.Document
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		ids, all, err := visibleOrderIDs(ctx, tx, p)
		if err != nil {
			return err
		}
		query := builder.Select[models.Document](tx)
		if !all {
			query.Where(builder.In("order_id", ids))
		}
		docs, err = query.OrderByDesc("created_at").OrderByDesc("id").All(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.Store("list documents", err)
	}
	resp := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		resp[i] = documentResponse(d)
	}
	return resp, nil
}

func (s *DocumentService) Get(ctx context.Context, p auth.Principal, id int64) (DocumentResponse, error) {
	doc, err := loadVisibleDocument(ctx, s.db, p, id)
	if err != nil {
		return DocumentResponse{}, apperr.Store("get document", err)
	}
	return documentResponse(doc), nil
}

func (s *DocumentService) Create(ctx context.Context, p auth.Principal, in DocumentInput) (DocumentResponse, error) {
	if err := validateDocument(in); err != nil {
		return DocumentResponse{}, err
	}

	var created models.Document
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if err := checkDocumentOrder(ctx, tx, p, in.OrderID); err != nil {
			return err
		}
		var err error
		created, err = builder.Insert[models.Document](tx).
			Values(models.Document{OrderID: in.OrderID, Name: in.Name, FilePath: in.FilePath}).
			One(ctx)
		return err
	})
	if err != nil {
		return DocumentResponse{}, apperr.Store("create document", err)
	}

	s.log.Info("document created", zap.Int64("document_id", created.ID), zap.Int64("order_id", created.OrderID))
	return documentResponse(created), nil
}

// Update may move a document to another order the caller can see.
func (s *DocumentService) Update(ctx context.Context, p auth.Principal, id int64, in DocumentInput) (DocumentResponse, error) {
	if err := validateDocument(in); err != nil {
		return DocumentResponse{}, err
	}

	var updated models.Document
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if _, err := loadVisibleDocument(ctx, tx, p, id); err != nil {
			return err
		}
		if err := checkDocumentOrder(ctx, tx, p, in.OrderID); err != nil {
			return err
		}
		rows, err := builder.Update[models.Document](tx).
			Set("order_id", in.OrderID).
			Set("name", in.Name).
			Set("file_path", in.FilePath).
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
		return DocumentResponse{}, apperr.Store("update document", err)
	}
	return documentResponse(updated), nil
}

// Delete removes a document and its comments.
func (s *DocumentService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := policy.CanDeleteDocument(p); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if _, err := loadVisibleDocument(ctx, tx, p, id); err != nil {
			return err
		}
		return deleteByID[models.Document](ctx, tx, "document", id, "Document is still referenced.")
	})
	if err != nil {
		return apperr.Store("delete document", err)
	}
	s.log.Info("document deleted", zap.Int64("document_id", id))
	return nil
}
