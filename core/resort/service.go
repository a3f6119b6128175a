// Package resort manages the ski resorts instructors work at, and the
// requests users make to add missing ones.
package resort

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/notification"
	"github.com/trezcool/slopeside/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("resort not found")
	ErrRequestNotFound = core.NewNotFoundError("resort request not found")
	ErrInactive        = core.NewNotFoundError("unknown or inactive resort")
	ErrResortExists    = core.NewConflictError("this resort already exists")
	ErrRequestExists   = core.NewConflictError("this resort has already been requested")
	ErrAlreadyReviewed = core.NewConflictError("this request has already been reviewed")
)

type (
	Repository interface {
		CreateResort(ctx context.Context, rst Resort, exec ...core.DBExecutor) (Resort, error)
		GetResort(ctx context.Context, id string, exec ...core.DBExecutor) (Resort, error)
		UpdateResort(ctx context.Context, rst Resort, exec ...core.DBExecutor) (Resort, error)
		QueryResorts(ctx context.Context, filter QueryFilter, page core.PageRequest, exec ...core.DBExecutor) ([]Resort, int, error)
		// QueryResortsByID returns the found resorts, in no particular order.
		QueryResortsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Resort, error)
		// ResortExists compares names case-insensitively.
		ResortExists(ctx context.Context, name, country string, exec ...core.DBExecutor) (bool, error)

		CreateRequest(ctx context.Context, req Request, exec ...core.DBExecutor) (Request, error)
		GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (Request, error)
		// UpdateRequest writes req while the stored status is still from, ErrAlreadyReviewed otherwise.
		UpdateRequest(ctx context.Context, req Request, from string, exec ...core.DBExecutor) (Request, error)
		QueryRequests(ctx context.Context, filter RequestFilter, page core.PageRequest, exec ...core.DBExecutor) ([]Request, int, error)
		PendingRequestExists(ctx context.Context, name, country string, exec ...core.DBExecutor) (bool, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Deps struct {
		Repo     Repository
		Users    UserFinder
		Tx       core.TxRunner
		Auditor  audit.Recorder
		Notifier *notification.Notifier
	}

	Service struct {
		repo     Repository
		users    UserFinder
		tx       core.TxRunner
		auditor  audit.Recorder
		notifier *notification.Notifier
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		repo:     deps.Repo,
		users:    deps.Users,
		tx:       deps.Tx,
		auditor:  deps.Auditor,
		notifier: deps.Notifier,
	}
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.PageRequest) ([]Resort, int, error) {
	filter.Clean()
	resorts, total, err := svc.repo.QueryResorts(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying resorts")
	}
	return resorts, total, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Resort, error) {
	return svc.repo.GetResort(ctx, id)
}

// CheckActive returns ErrInactive unless every resort exists and is active.
func (svc *Service) CheckActive(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	resorts, err := svc.repo.QueryResortsByID(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "querying resorts")
	}
	active := make(map[string]bool, len(resorts))
	for _, rst := range resorts {
		active[rst.ID] = rst.Active
	}
	for _, id := range ids {
		if !active[id] {
			return ErrInactive
		}
	}
	return nil
}

func (svc *Service) checkDuplicate(ctx context.Context, name, country string, exec ...core.DBExecutor) error {
	exists, err := svc.repo.ResortExists(ctx, name, country, exec...)
	if err != nil {
		return errors.Wrap(err, "checking resort uniqueness")
	}
	if exists {
		return ErrResortExists
	}
	return nil
}

func (svc *Service) create(ctx context.Context, nr NewResort, exec core.DBExecutor) (Resort, error) {
	if err := svc.checkDuplicate(ctx, nr.Name, nr.Country, exec); err != nil {
		return Resort{}, err
	}
	rst := Resort{
		Name:      nr.Name,
		Slug:      core.Slugify(nr.Name + " " + nr.Country),
		Country:   nr.Country,
		Region:    nr.Region,
		Active:    true,
		CreatedAt: core.NowFunc(),
	}
	rst, err := svc.repo.CreateResort(ctx, rst, exec)
	if err != nil {
		return Resort{}, errors.Wrap(err, "inserting resort")
	}
	return rst, nil
}

// Create adds a resort (staff only).
func (svc *Service) Create(ctx context.Context, actorID string, nr NewResort) (Resort, error) {
	var rst Resort
	err := svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if rst, err = svc.create(ctx, nr, exec); err != nil {
			return err
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     audit.ActionResortCreated,
			EntityType: audit.EntityResort,
			EntityID:   rst.ID,
			Metadata:   map[string]interface{}{"name": rst.Name, "country": rst.Country},
		}, exec)
	})
	if err != nil {
		return Resort{}, err
	}
	return rst, nil
}

func (svc *Service) SetActive(ctx context.Context, actorID, id string, active bool) (Resort, error) {
	rst, err := svc.Get(ctx, id)
	if err != nil {
		return Resort{}, err
	}
	err = svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		rst.Active = active
		if rst, err = svc.repo.UpdateResort(ctx, rst, exec); err != nil {
			return errors.Wrap(err, "updating resort")
		}
		action := audit.ActionResortDeactivated
		if active {
			action = audit.ActionResortActivated
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     action,
			EntityType: audit.EntityResort,
			EntityID:   rst.ID,
		}, exec)
	})
	if err != nil {
		return Resort{}, err
	}
	return rst, nil
}

// SubmitRequest asks staff to add a missing resort.
func (svc *Service) SubmitRequest(ctx context.Context, userID string, nr NewRequest) (Request, error) {
	if err := svc.checkDuplicate(ctx, nr.Name, nr.Country); err != nil {
		return Request{}, err
	}
	pending, err := svc.repo.PendingRequestExists(ctx, nr.Name, nr.Country)
	if err != nil {
		return Request{}, errors.Wrap(err, "checking pending requests")
	}
	if pending {
		return Request{}, ErrRequestExists
	}

	req := Request{
		RequestedBy: userID,
		Name:        nr.Name,
		Country:     nr.Country,
		Region:      nr.Region,
		Status:      StatusPending,
		CreatedAt:   core.NowFunc(),
	}
	if req, err = svc.repo.CreateRequest(ctx, req); err != nil {
		return Request{}, errors.Wrap(err, "inserting resort request")
	}
	return req, nil
}

func (svc *Service) ListRequests(ctx context.Context, filter RequestFilter, page core.PageRequest) ([]Request, int, error) {
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	reqs, total, err := svc.repo.QueryRequests(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying resort requests")
	}
	return reqs, total, nil
}

// Approve creates the requested resort and links it to the request.
func (svc *Service) Approve(ctx context.Context, actorID, id, note string) (Request, error) {
	return svc.review(ctx, actorID, id, note, true)
}

func (svc *Service) Reject(ctx context.Context, actorID, id, note string) (Request, error) {
	return svc.review(ctx, actorID, id, note, false)
}

func (svc *Service) review(ctx context.Context, actorID, id, note string, approve bool) (Request, error) {
	var req Request
	err := svc.tx.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if req, err = svc.repo.GetRequest(ctx, id, exec); err != nil {
			return err
		}
		if !req.IsPending() {
			return ErrAlreadyReviewed
		}

		now := core.NowFunc()
		action := audit.ActionResortRequestRejected
		req.Status = StatusRejected
		if approve {
			rst, err := svc.create(ctx, NewResort{Name: req.Name, Country: req.Country, Region: req.Region}, exec)
			if err != nil {
				return err
			}
			req.ResortID = &rst.ID
			req.Status = StatusApproved
			action = audit.ActionResortRequestApproved
		}
		req.ReviewedBy = &actorID
		req.ReviewNote = core.CleanString(note)
		req.ReviewedAt = &now

		switch req, err = svc.repo.UpdateRequest(ctx, req, StatusPending, exec); {
		case errors.Cause(err) == ErrAlreadyReviewed:
			return ErrAlreadyReviewed
		case err != nil:
			return errors.Wrap(err, "updating resort request")
		}
		return svc.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			Action:     action,
			EntityType: audit.EntityResortRequest,
			EntityID:   req.ID,
			Metadata:   map[string]interface{}{"note": req.ReviewNote},
		}, exec)
	})
	if err != nil {
		return Request{}, err
	}

	if requester, err := svc.users.GetByID(ctx, req.RequestedBy); err == nil {
		svc.notifier.ResortRequestReviewed(user.Recipient(requester), notification.ResortRequestData{
			Name:     req.Name,
			Country:  req.Country,
			Note:     req.ReviewNote,
			Approved: req.Status == StatusApproved,
		})
	}
	return req, nil
}
