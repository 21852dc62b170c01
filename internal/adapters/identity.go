package adapters

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/events"
)

const (
	// MissingUserID makes GetUser answer USER_NOT_FOUND.
	MissingUserID = "ext_user_99999"

	referenceManagerID = "ext_user_00001"
	referenceHireDate  = "2022-01-15"
	directorySize      = 150
	defaultPerPage     = 50
)

// ExternalUser is the identity service's view of a user. Empty fields are unknown.
type ExternalUser struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Department  string    `json:"department"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	ManagerID   string    `json:"manager_id"`
	HireDate    string    `json:"hire_date"`
	LastUpdated time.Time `json:"last_updated"`
}

// UserSummary is one row of the directory listing.
type UserSummary struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Status    string `json:"status"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasMore bool `json:"has_more"`
}

// UserList is a page of the upstream directory.
type UserList struct {
	Users      []UserSummary `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

var referenceDirectory = []UserSummary{
	{UserID: "ext_user_12345", Email: "sarah.johnson@techcorp.com", FirstName: "Sarah", LastName: "Johnson", Status: "active"},
	{UserID: "ext_user_54321", Email: "john.doe@techcorp.com", FirstName: "John", LastName: "Doe", Status: "active"},
}

// Identity simulates the user management service.
type Identity struct {
	faults *FaultInjector
	logger *zap.Logger
	now    func() time.Time
}

// NewIdentity creates an identity adapter.
func NewIdentity(faults *FaultInjector, logger *zap.Logger) *Identity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identity{faults: faults, logger: logger, now: time.Now}
}

// GetUser returns the authoritative record for the user an event refers to.
func (a *Identity) GetUser(ctx context.Context, ev *events.IdentityEvent) (Response[ExternalUser], error) {
	if err := ctx.Err(); err != nil {
		return Response[ExternalUser]{}, err
	}
	if err := a.faults.Check(events.ServiceIdentity); err != nil {
		return Response[ExternalUser]{}, err
	}

	u := ExternalUser{ManagerID: referenceManagerID, HireDate: referenceHireDate, LastUpdated: a.now()}
	switch d := ev.Data.(type) {
	case *events.UserCreated:
		u.UserID, u.Email, u.FirstName, u.LastName = d.UserID, d.Email, d.FirstName, d.LastName
		u.Department, u.Title, u.Status = d.Department, d.Title, d.Status
		if d.HireDate != nil {
			u.HireDate = d.HireDate.Format("2006-01-02")
		}
	case *events.UserUpdated:
		c := d.Changes
		u.UserID, u.Email, u.FirstName, u.LastName = d.UserID, c.Email, c.FirstName, c.LastName
		u.Department, u.Title, u.Status = c.Department, c.Title, c.Status
		if c.ManagerID != "" {
			u.ManagerID = c.ManagerID
		}
	case *events.UserDeleted:
		u.UserID, u.Email, u.Status = d.UserID, d.Email, "inactive"
	}

	if u.UserID == MissingUserID {
		a.logger.Info("identity service: user not found", zap.String("user_id", u.UserID))
		return failure[ExternalUser]("USER_NOT_FOUND", "User with ID "+u.UserID+" not found", a.now()), nil
	}
	return success(u), nil
}

// ListUsers returns one page of the upstream directory. page starts at 1.
func (a *Identity) ListUsers(ctx context.Context, page, perPage int) (Response[UserList], error) {
	if err := ctx.Err(); err != nil {
		return Response[UserList]{}, err
	}
	if err := a.faults.Check(events.ServiceIdentity); err != nil {
		return Response[UserList]{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	users := []UserSummary{}
	if page == 1 {
		users = append(users, referenceDirectory...)
	}
	return success(UserList{
		Users: users,
		Pagination: Pagination{
			Total:   directorySize,
			Page:    page,
			PerPage: perPage,
			HasMore: page*perPage < directorySize,
		},
	}), nil
}
