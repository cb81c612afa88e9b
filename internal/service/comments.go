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

// CommentInput creates or updates a comment. A zero UserID means the
// caller. A zero parent id counts as unset.
type CommentInput struct {
	UserID     int64  `json:"userId"`
	OrderID    *int64 `json:"orderId"`
	DocumentID *int64 `json:"documentId"`
	Text       string `json:"text"`
}

type CommentResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	OrderID    *int64    `json:"orderId"`
	DocumentID *int64    `json:"documentId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CommentService struct {
	db  *runtime.DB
	log *zap.Logger
}

// normalizeComment fills the author and clears zero parent ids.
func normalizeComment(p auth.Principal, in *CommentInput) {
	if in.UserID == 0 {
		in.UserID = p.UserID
	}
	if in.OrderID != nil && *in.OrderID == 0 {
		in.OrderID = nil
	}
	if in.DocumentID != nil && *in.DocumentID == 0 {
		in.DocumentID = nil
	}
}

// validateComment enforces non-blank text and exactly one parent.
func validateComment(in CommentInput) error {
	if blank(in.Text) {
		return apperr.Validation("text", "text is required")
	}
	if in.OrderID != nil && *in.OrderID < 0 {
		return apperr.Validation("orderId", "orderId must be greater than zero")
	}
	if in.DocumentID != nil && *in.DocumentID < 0 {
		return apperr.Validation("documentId", "documentId must be greater than zero")
	}
	if (in.OrderID == nil) == (in.DocumentID == nil) {
		return apperr.Validation("orderId", "exactly one of orderId or documentId must be set")
	}
	return nil
}

// checkCommentReferences verifies the author and the parent exist and that
// the parent is visible to p.
func checkCommentReferences(ctx context.Context, q runtime.Querier, p auth.Principal, in CommentInput) error {
	ok, err := exists[models.User](ctx, q, "id", in.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Reference("userId", fmt.Sprintf("User with ID %d does not exist.", in.UserID))
	}

	if in.OrderID != nil {
		_, err := loadVisibleOrder(ctx, q, p, *in.OrderID)
		if isNotFound(err) {
			return apperr.Reference("orderId", fmt.Sprintf("Order with ID %d does not exist.", *in.OrderID))
		}
		return err
	}

	_, err = loadVisibleDocument(ctx, q, p, *in.DocumentID)
	if isNotFound(err) {
		return apperr.Reference("documentId", fmt.Sprintf("Document with ID %d does not exist.", *in.DocumentID))
	}
	return err
}

func commentResponse(c models.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		OrderID:    c.OrderID,
		DocumentID: c.DocumentID,
		Text:       c.Text,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func commentResponses(comments []models.Comment) []CommentResponse {
	resp := make([]CommentResponse, len(comments))
	for i, c := range comments {
		resp[i] = commentResponse(c)
	}
	return resp
}

// List returns every comment to staff and a client's own comments
// otherwise, newest first.
func (s *CommentService) List(ctx context.Context, p auth.Principal) ([]CommentResponse, error) {
	query := builder.Select[models.Comment](s.db)
	if !p.Is(auth.RoleAdmin, auth.RoleManager) {
		query.Where(builder.Eq("user_id", p.UserID))
	}
	comments, err := query.OrderByDesc("created_at").OrderByDesc("id").All(ctx)
	if err != nil {
		return nil, apperr.Store("list comments", err)
	}
	return commentResponses(comments), nil
}

// ListByOrder returns the comments on a visible order.
func (s *CommentService) ListByOrder(ctx context.Context, p auth.Principal, orderID int64) ([]CommentResponse, error) {
	var comments []models.Comment
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if _, err := loadVisibleOrder(ctx, tx, p, orderID); err != nil {
			return err
		}
		var err error
		comments, err = builder.Select[models.Comment](tx).
			Where(builder.Eq("order_id", orderID)).
			OrderByDesc("created_at").
			OrderByDesc("id").
			All(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.Store("list order comments", err)
	}
	return commentResponses(comments), nil
}

// ListByDocument returns the comments on a visible document.
func (s *CommentService) ListByDocument(ctx context.Context, p auth.Principal, documentID int64) ([]CommentResponse, error) {
	var comments []models.Comment
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if _, err := loadVisibleDocument(ctx, tx, p, documentID); err != nil {
			return err
		}
		var err error
		comments, err = builder.Select[models.Comment](tx).
			Where(builder.Eq("document_id", documentID)).
			OrderByDesc("created_at").
			OrderByDesc("id").
			All(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.Store("list document comments", err)
	}
	return commentResponses(comments), nil
}

func (s *CommentService) Get(ctx context.Context, p auth.Principal, id int64) (CommentResponse, error) {
	c, err := findByID[models.Comment](ctx, s.db, "comment", id)
	if err != nil {
		return CommentResponse{}, apperr.Store("get comment", err)
	}
	if !p.Is(auth.RoleAdmin, auth.RoleManager) && c.UserID != p.UserID {
		if err := s.checkParentVisible(ctx, p, c); err != nil {
			return CommentResponse{}, apperr.Store("get comment", err)
		}
	}
	return commentResponse(c), nil
}

func (s *CommentService) checkParentVisible(ctx context.Context, p auth.Principal, c models.Comment) error {
	if c.OrderID != nil {
		_, err := loadVisibleOrder(ctx, s.db, p, *c.OrderID)
		return err
	}
	if c.DocumentID != nil {
		_, err := loadVisibleDocument(ctx, s.db, p, *c.DocumentID)
		return err
	}
	return nil
}

func (s *CommentService) Create(ctx context.Context, p auth.Principal, in CommentInput) (CommentResponse, error) {
	normalizeComment(p, &in)
	if err := validateComment(in); err != nil {
		return CommentResponse{}, err
	}
	if err := policy.CanAuthorComment(p, in.UserID); err != nil {
		return CommentResponse{}, err
	}

	var created models.Comment
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if err := checkCommentReferences(ctx, tx, p, in); err != nil {
			return err
		}
		var err error
		created, err = builder.Insert[models.Comment](tx).
			Values(models.Comment{UserID: in.UserID, OrderID: in.OrderID, DocumentID: in.DocumentID, Text: in.Text}).
			One(ctx)
		return err
	})
	if err != nil {
		return CommentResponse{}, apperr.Store("create comment", err)
	}

	s.log.Info("comment created", zap.Int64("comment_id", created.ID), zap.Int64("user_id", created.UserID))
	return commentResponse(created), nil
}

// Update rewrites a comment. Only its author or staff may change it.
func (s *CommentService) Update(ctx context.Context, p auth.Principal, id int64, in CommentInput) (CommentResponse, error) {
	normalizeComment(p, &in)
	if err := validateComment(in); err != nil {
		return CommentResponse{}, err
	}

	var updated models.Comment
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		existing, err := findByID[models.Comment](ctx, tx, "comment", id)
		if err != nil {
			return err
		}
		if err := policy.CanAuthorComment(p, existing.UserID); err != nil {
			return err
		}
		if err := policy.CanAuthorComment(p, in.UserID); err != nil {
			return err
		}
		if err := checkCommentReferences(ctx, tx, p, in); err != nil {
			return err
		}

		rows, err := builder.Update[models.Comment](tx).
			Set("user_id", in.UserID).
			Set("order_id", in.OrderID).
			Set("document_id", in.DocumentID).
			Set("text", in.Text).
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
		return CommentResponse{}, apperr.Store("update comment", err)
	}
	return commentResponse(updated), nil
}

// Delete removes a comment. Only its author or staff may delete it.
func (s *CommentService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		existing, err := findByID[models.Comment](ctx, tx, "comment", id)
		if err != nil {
			return err
		}
		if err := policy.CanAuthorComment(p, existing.UserID); err != nil {
			return err
		}
		return deleteByID[models.Comment](ctx, tx, "comment", id, "Comment is still referenced.")
	})
	if err != nil {
		return apperr.Store("delete comment", err)
	}
	return nil
}
