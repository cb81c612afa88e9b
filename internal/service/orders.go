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

// OrderProductInput is one product line of an order request. A zero
// Quantity means 1.
type OrderProductInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	Done      bool  `json:"done"`
}

// OrderJobInput is one job line; Price is captured as given.
type OrderJobInput struct {
	JobID int64   `json:"jobId"`
	Price float64 `json:"price"`
	Done  bool    `json:"done"`
}

// OrderInput is the create/update request. UserID is ignored on update.
type OrderInput struct {
	UserID        int64               `json:"userId"`
	ManagerID     *int64              `json:"managerId"`
	Status        string              `json:"status"`
	TotalPrice    float64             `json:"totalPrice"`
	OrderProducts []OrderProductInput `json:"orderProducts"`
	OrderJobs     []OrderJobInput     `json:"orderJobs"`
}

type OrderProductResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	Done      bool  `json:"done"`
}

type OrderJobResponse struct {
	JobID int64   `json:"jobId"`
	Price float64 `json:"price"`
	Done  bool    `json:"done"`
}

// OrderResponse denormalizes the owner's email and the manager's username.
type OrderResponse struct {
	ID            int64                  `json:"id"`
	UserID        int64                  `json:"userId"`
	UserEmail     string                 `json:"userEmail"`
	ManagerID     *int64                 `json:"managerId"`
	ManagerName   *string                `json:"managerName"`
	Status        string                 `json:"status"`
	TotalPrice    float64                `json:"totalPrice"`
	OrderProducts []OrderProductResponse `json:"orderProducts"`
	OrderJobs     []OrderJobResponse     `json:"orderJobs"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

type OrderService struct {
	db  *runtime.DB
	log *zap.Logger
}

var orderStatuses = map[string]bool{
	models.StatusPending:    true,
	models.StatusProcessing: true,
	models.StatusCompleted:  true,
	models.StatusCancelled:  true,
}

// validateOrder checks the request shape and fills defaults in place. The
// owner is only checked when checkOwner is set.
func validateOrder(in *OrderInput, checkOwner bool) error {
	if checkOwner && in.UserID <= 0 {
		return apperr.Validation("userId", "UserId must be greater than zero.")
	}
	if in.ManagerID != nil && *in.ManagerID <= 0 {
		return apperr.Validation("managerId", "ManagerId must be greater than zero if provided.")
	}
	if in.TotalPrice < 0 {
		return apperr.Validation("totalPrice", "TotalPrice cannot be negative.")
	}
	if err := checkAmount("totalPrice", "TotalPrice", in.TotalPrice); err != nil {
		return err
	}

	if in.Status == "" {
		in.Status = models.StatusPending
	}
	if !orderStatuses[in.Status] {
		return apperr.Validation("status", fmt.Sprintf("invalid order status %q", in.Status))
	}

	seenProducts := make(map[int64]bool, len(in.OrderProducts))
	for i := range in.OrderProducts {
		line := &in.OrderProducts[i]
		if line.Quantity == 0 {
			line.Quantity = 1
		}
		if line.Quantity < 1 {
			return apperr.Validation("orderProducts.quantity", "Quantity must be at least 1.")
		}
		if seenProducts[line.ProductID] {
			return apperr.Validation("orderProducts.productId", fmt.Sprintf("Product %d appears more than once.", line.ProductID))
		}
		seenProducts[line.ProductID] = true
	}

	seenJobs := make(map[int64]bool, len(in.OrderJobs))
	for _, line := range in.OrderJobs {
		if line.Price < 0 {
			return apperr.Validation("orderJobs.price", "Job price cannot be negative.")
		}
		if err := checkAmount("orderJobs.price", "Job price", line.Price); err != nil {
			return err
		}
		if seenJobs[line.JobID] {
			return apperr.Validation("orderJobs.jobId", fmt.Sprintf("Job %d appears more than once.", line.JobID))
		}
		seenJobs[line.JobID] = true
	}
	return nil
}

// checkOrderReferences verifies the manager and every product and job exist.
func checkOrderReferences(ctx context.Context, tx *runtime.Tx, in OrderInput) error {
	if in.ManagerID != nil {
		ok, err := exists[models.Manager](ctx, tx, "user_id", *in.ManagerID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Reference("managerId", fmt.Sprintf("Manager with User ID %d does not exist.", *in.ManagerID))
		}
	}

	productIDs := make([]int64, len(in.OrderProducts))
	for i, line := range in.OrderProducts {
		productIDs[i] = line.ProductID
	}
	missing, err := missingIDs(ctx, tx, productIDs, func(p models.Product) int64 { return p.ID })
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.Reference("orderProducts.productId", fmt.Sprintf("Product with ID %d does not exist.", missing[0]))
	}

	jobIDs := make([]int64, len(in.OrderJobs))
	for i, line := range in.OrderJobs {
		jobIDs[i] = line.JobID
	}
	missing, err = missingIDs(ctx, tx, jobIDs, func(j models.Job) int64 { return j.ID })
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.Reference("orderJobs.jobId", fmt.Sprintf("Job with ID %d does not exist.", missing[0]))
	}
	return nil
}

// insertLines writes the line items of orderID.
func insertLines(ctx context.Context, tx *runtime.Tx, orderID int64, in OrderInput) ([]models.OrderProduct, []models.OrderJob, error) {
	products := make([]models.OrderProduct, len(in.OrderProducts))
	for i, line := range in.OrderProducts {
		products[i] = models.OrderProduct{OrderID: orderID, ProductID: line.ProductID, Quantity: line.Quantity, Done: line.Done}
	}
	jobs := make([]models.OrderJob, len(in.OrderJobs))
	for i, line := range in.OrderJobs {
		jobs[i] = models.OrderJob{OrderID: orderID, JobID: line.JobID, Price: line.Price, Done: line.Done}
	}

	if len(products) > 0 {
		if _, err := builder.Insert[models.OrderProduct](tx).Values(products...).Exec(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to insert order products: %w", err)
		}
	}
	if len(jobs) > 0 {
		if _, err := builder.Insert[models.OrderJob](tx).Values(jobs...).Exec(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to insert order jobs: %w", err)
		}
	}
	return products, jobs, nil
}

// Create stores a new order with its line items. TotalPrice is kept exactly
// as supplied.
func (s *OrderService) Create(ctx context.Context, p auth.Principal, in OrderInput) (OrderResponse, error) {
	if err := validateOrder(&in, true); err != nil {
		return OrderResponse{}, err
	}
	if err := policy.CanCreateOrder(p, in.UserID); err != nil {
		return OrderResponse{}, err
	}

	var resp OrderResponse
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		ok, err := exists[models.User](ctx, tx, "id", in.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Reference("userId", fmt.Sprintf("User with ID %d does not exist.", in.UserID))
		}
		if err := checkOrderReferences(ctx, tx, in); err != nil {
			return err
		}

		order, err := builder.Insert[models.Order](tx).Values(models.Order{
			UserID:     in.UserID,
			ManagerID:  in.ManagerID,
			Status:     in.Status,
			TotalPrice: in.TotalPrice,
		}).One(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		order.Products, order.Jobs, err = insertLines(ctx, tx, order.ID, in)
		if err != nil {
			return err
		}

		responses, err := orderResponses(ctx, tx, []models.Order{order})
		if err != nil {
			return err
		}
		resp = responses[0]
		return nil
	})
	if err != nil {
		return OrderResponse{}, apperr.Store("create order", err)
	}

	s.log.Info("order created", zap.Int64("order_id", resp.ID), zap.Int64("user_id", resp.UserID), zap.Int64("by", p.UserID))
	return resp, nil
}

// Update replaces the order's manager, status, total and its whole set of
// line items. Lines missing from the request are removed.
func (s *OrderService) Update(ctx context.Context, p auth.Principal, id int64, in OrderInput) (OrderResponse, error) {
	if err := validateOrder(&in, false); err != nil {
		return OrderResponse{}, err
	}

	var resp OrderResponse
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		order, err := builder.Select[models.Order](tx).
			Where(builder.Eq("id", id)).
			ForUpdate().
			Preload("Products", "Jobs").
			First(ctx)
		if runtime.IsNotFound(err) {
			return apperr.NotFound("order", id)
		}
		if err != nil {
			return err
		}
		if err := policy.CanViewOrder(p, order); err != nil {
			return err
		}
		if err := policy.CanUpdateOrder(p, order); err != nil {
			return err
		}
		if err := checkOrderReferences(ctx, tx, in); err != nil {
			return err
		}

		updated, err := builder.Update[models.Order](tx).
			Set("manager_id", in.ManagerID).
			Set("status", in.Status).
			Set("total_price", in.TotalPrice).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", id)).
			ExecReturning(ctx)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		order = updated[0]

		if _, err := builder.Delete[models.OrderProduct](tx).Where(builder.Eq("order_id", id)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear order products: %w", err)
		}
		if _, err := builder.Delete[models.OrderJob](tx).Where(builder.Eq("order_id", id)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear order jobs: %w", err)
		}
		order.Products, order.Jobs, err = insertLines(ctx, tx, id, in)
		if err != nil {
			return err
		}

		responses, err := orderResponses(ctx, tx, []models.Order{order})
		if err != nil {
			return err
		}
		resp = responses[0]
		return nil
	})
	if err != nil {
		return OrderResponse{}, apperr.Store("update order", err)
	}

	s.log.Info("order updated", zap.Int64("order_id", id), zap.Int64("by", p.UserID))
	return resp, nil
}

// Get returns one order. A missing order is NotFound; an existing order
// outside the caller's scope is Forbidden.
func (s *OrderService) Get(ctx context.Context, p auth.Principal, id int64) (OrderResponse, error) {
	var resp OrderResponse
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		order, err := loadVisibleOrder(ctx, tx, p, id)
		if err != nil {
			return err
		}
		responses, err := orderResponses(ctx, tx, []models.Order{order})
		if err != nil {
			return err
		}
		resp = responses[0]
		return nil
	})
	if err != nil {
		return OrderResponse{}, apperr.Store("get order", err)
	}
	return resp, nil
}

// List returns the orders visible to p, newest first.
func (s *OrderService) List(ctx context.Context, p auth.Principal) ([]OrderResponse, error) {
	var resp []OrderResponse
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		query := builder.Select[models.Order](tx)
		if scope := policy.OrderScope(p); !scope.Unrestricted() {
			query.Where(builder.Eq(scope.Column, scope.UserID))
		}
		orders, err := query.
			OrderByDesc("created_at").
			OrderByDesc("id").
			Preload("Products", "Jobs").
			All(ctx)
		if err != nil {
			return err
		}
		resp, err = orderResponses(ctx, tx, orders)
		return err
	})
	if err != nil {
		return nil, apperr.Store("list orders", err)
	}
	return resp, nil
}

// Delete removes an order; documents and comments cascade.
func (s *OrderService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := policy.CanDeleteOrder(p); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		return deleteByID[models.Order](ctx, tx, "order", id, fmt.Sprintf("Order %d is still referenced.", id))
	})
	if err != nil {
		return apperr.Store("delete order", err)
	}
	s.log.Info("order deleted", zap.Int64("order_id", id), zap.Int64("by", p.UserID))
	return nil
}

// loadVisibleOrder loads an order with its lines and applies CanViewOrder.
func loadVisibleOrder(ctx context.Context, q runtime.Querier, p auth.Principal, id int64) (models.Order, error) {
	order, err := builder.Select[models.Order](q).
		Where(builder.Eq("id", id)).
		Preload("Products", "Jobs").
		First(ctx)
	if runtime.IsNotFound(err) {
		return order, apperr.NotFound("order", id)
	}
	if err != nil {
		return order, err
	}
	return order, policy.CanViewOrder(p, order)
}

// visibleOrderIDs returns the ids of every order in p's scope, or nil with
// all set when the scope is unrestricted.
func visibleOrderIDs(ctx context.Context, q runtime.Querier, p auth.Principal) (ids []int64, all bool, err error) {
	scope := policy.OrderScope(p)
	if scope.Unrestricted() {
		return nil, true, nil
	}
	orders, err := builder.Select[models.Order](q).
		Columns("id").
		Where(builder.Eq(scope.Column, scope.UserID)).
		All(ctx)
	if err != nil {
		return nil, false, err
	}
	ids = make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids, false, nil
}

// orderResponses shapes orders, resolving owner emails and manager names
// with one query each.
func orderResponses(ctx context.Context, q runtime.Querier, orders []models.Order) ([]OrderResponse, error) {
	responses := make([]OrderResponse, 0, len(orders))
	if len(orders) == 0 {
		return responses, nil
	}

	var ownerIDs, managerIDs []int64
	for _, o := range orders {
		ownerIDs = append(ownerIDs, o.UserID)
		if o.ManagerID != nil {
			managerIDs = append(managerIDs, *o.ManagerID)
		}
	}

	owners, err := builder.Select[models.User](q).Where(builder.In("id", ownerIDs)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load order owners: %w", err)
	}
	emails := make(map[int64]string, len(owners))
	for _, u := range owners {
		emails[u.ID] = u.Email
	}

	names := make(map[int64]string)
	if len(managerIDs) > 0 {
		managers, err := builder.Select[models.Manager](q).
			Where(builder.In("user_id", managerIDs)).
			Preload("User").
			All(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load order managers: %w", err)
		}
		for _, m := range managers {
			if m.User != nil {
				names[m.UserID] = m.User.Username
			}
		}
	}

	for _, o := range orders {
		resp := OrderResponse{
			ID:            o.ID,
			UserID:        o.UserID,
			UserEmail:     emails[o.UserID],
			ManagerID:     o.ManagerID,
			Status:        o.Status,
			TotalPrice:    o.TotalPrice,
			OrderProducts: make([]OrderProductResponse, len(o.Products)),
			OrderJobs:     make([]OrderJobResponse, len(o.Jobs)),
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     o.UpdatedAt,
		}
		if o.ManagerID != nil {
			if name, ok := names[*o.ManagerID]; ok {
				resp.ManagerName = &name
			}
		}
		for i, line := range o.Products {
			resp.OrderProducts[i] = OrderProductResponse{ProductID: line.ProductID, Quantity: line.Quantity, Done: line.Done}
		}
		for i, line := range o.Jobs {
			resp.OrderJobs[i] = OrderJobResponse{JobID: line.JobID, Price: line.Price, Done: line.Done}
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
