package task

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ATLAS-backend/internal/platform/apperr"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/idgen"
)

var (
	ErrNotFound       = apperr.NotFound("TASK_NOT_FOUND", "task not found")
	ErrSessionRunning = apperr.Conflict("TASK_SESSION_RUNNING", "stop the running session first")
)

type Service struct {
	db *sql.DB
	id idgen.IDGen
}

func NewService(conn *sql.DB, ids idgen.IDGen) *Service {
	return &Service{db: conn, id: ids}
}

// GetOwnedTx は担当者本人のタスクだけを返す。他人のタスクは存在有無を漏らさない。
func GetOwnedTx(ctx context.Context, st *Store, userID, taskID string) (*Task, error) {
	t, err := st.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if t.AssigneeID != userID {
		return nil, apperr.ErrForbidden
	}
	return t, nil
}

// POST /tasks
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateRequest) (View, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return View{}, apperr.Invalid("INVALID_TITLE", "title is required")
	}
	assignee := actor.UserID
	if in.AssigneeID != nil && *in.AssigneeID != "" && *in.AssigneeID != actor.UserID {
		if !actor.Role.CanManage() {
			return View{}, apperr.ErrForbidden
		}
		assignee = *in.AssigneeID
	}
	status := StatusTodo
	if in.Status != nil {
		st, err := ParseStatus(*in.Status)
		if err != nil {
			return View{}, err
		}
		status = st
	}

	id, err := s.id.New()
	if err != nil {
		return View{}, err
	}
	var zero int64
	t := Task{ID: id, AssigneeID: assignee, Title: title, Status: status, TotalSeconds: &zero}
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return NewStore(tx).InsertTask(ctx, t)
	})
	if err != nil {
		return View{}, fmt.Errorf("insert task: %w", err)
	}
	return toView(t, 0), nil
}

// GET /users/:userId/tasks
func (s *Service) ListFor(ctx context.Context, viewer auth.Identity, userID string) ([]View, error) {
	if !viewer.CanView(userID) {
		return nil, apperr.ErrForbidden
	}
	out := []View{}
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		ts, err := st.ListByAssignee(ctx, userID)
		if err != nil {
			return err
		}
		for _, t := range ts {
			acc, err := Accumulated(ctx, st, t)
			if err != nil {
				return err
			}
			out = append(out, toView(t, acc))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// PATCH /tasks/:id/status
// 計測中のタスクを作業外の状態へは動かせない（先に停止する）。
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Identity, taskID, status string) (View, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return View{}, err
	}

	var out View
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		t, err := st.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		if t == nil {
			return ErrNotFound
		}
		if t.AssigneeID != actor.UserID && !actor.Role.CanManage() {
			return apperr.ErrForbidden
		}
		if !next.IsActive() {
			running, err := st.RunningSessionForTask(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("running session: %w", err)
			}
			if running != nil {
				return ErrSessionRunning
			}
		}
		if err := st.UpdateStatus(ctx, t.ID, next); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		t.Status = next
		acc, err := Accumulated(ctx, st, *t)
		if err != nil {
			return err
		}
		out = toView(*t, acc)
		return nil
	})
	return out, err
}
