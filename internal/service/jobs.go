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

type JobInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type JobResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type JobService struct {
	db  *runtime.DB
	log *zap.Logger
}

func validateJob(in JobInput) error {
	if blank(in.Name) {
		return apperr.Validation("name", "name is required")
	}
	if in.Price <= 0 {
		return apperr.Validation("price", "price must be > 0")
	}
	return checkAmount("price", "price", in.Price)
}

func jobResponse(j models.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Name:        j.Name,
		Description: j.Description,
		Price:       j.Price,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func (s *JobService) List(ctx context.Context) ([]JobResponse, error) {
	jobs, err := builder.Select[models.Job](s.db).OrderByAsc("id").All(ctx)
	if err != nil {
		return nil, apperr.Store("list jobs", err)
	}
	resp := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = jobResponse(j)
	}
	return resp, nil
}

func (s *JobService) Get(ctx context.Context, id int64) (JobResponse, error) {
	j, err := findByID[models.Job](ctx, s.db, "job", id)
	if err != nil {
		return JobResponse{}, apperr.Store("get job", err)
	}
	return jobResponse(j), nil
}

func (s *JobService) Create(ctx context.Context, p auth.Principal, in JobInput) (JobResponse, error) {
	if err := policy.CanEditCatalog(p); err != nil {
		return JobResponse{}, err
	}
	if err := validateJob(in); err != nil {
		return JobResponse{}, err
	}

	var created models.Job
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		var err error
		created, err = builder.Insert[models.Job](tx).
			Values(models.Job{Name: in.Name, Description: in.Description, Price: in.Price}).
			One(ctx)
		return err
	})
	if err != nil {
		return JobResponse{}, apperr.Store("create job", err)
	}

	s.log.Info("job created", zap.Int64("job_id", created.ID))
	return jobResponse(created), nil
}

// Update changes a job. Prices already captured on orders are unaffected.
func (s *JobService) Update(ctx context.Context, p auth.Principal, id int64, in JobInput) (JobResponse, error) {
	if err := policy.CanEditCatalog(p); err != nil {
		return JobResponse{}, err
	}
	if err := validateJob(in); err != nil {
		return JobResponse{}, err
	}

	var updated models.Job
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		rows, err := builder.Update[models.Job](tx).
			Set("name", in.Name).
			Set("description", in.Description).
			Set("price", in.Price).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", id)).
			ExecReturning(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperr.NotFound("job", id)
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		return JobResponse{}, apperr.Store("update job", err)
	}
	return jobResponse(updated), nil
}

// Delete removes a job unless an order still references it.
func (s *JobService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := policy.CanDeleteCatalog(p); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		return deleteByID[models.Job](ctx, tx, "job", id,
			fmt.Sprintf("Job %d is referenced by existing orders.", id))
	})
	if err != nil {
		return apperr.Store("delete job", err)
	}
	s.log.Info("job deleted", zap.Int64("job_id", id))
	return nil
}
