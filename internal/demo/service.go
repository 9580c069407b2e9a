package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wondertwin-ai/demo-management/internal/logging"
)

const (
	maxNameLen = 200
	maxLogoLen = 255
)

// CreateInput is the payload for creating a demo. LogoFile, when set, takes
// precedence over Logo.
type CreateInput struct {
	Name     string  `json:"name"`
	Logo     *string `json:"logo,omitempty"`
	LogoFile *Upload `json:"-"`
}

// UpdateInput is a partial update; nil fields are left unchanged. A new
// LogoFile replaces the stored logo file.
type UpdateInput struct {
	Name     *string `json:"name,omitempty"`
	Logo     *string `json:"logo,omitempty"`
	LogoFile *Upload `json:"-"`
}

// Upload is a logo file sent with a create or update request.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// LogoStore keeps uploaded logo files and returns the URL they are served at.
type LogoStore interface {
	SaveLogo(ctx context.Context, demoID string, up Upload) (string, error)
	// DeleteLogo removes a file saved by SaveLogo. URLs it does not own are
	// ignored.
	DeleteLogo(ctx context.Context, url string) error
}

// StatusInput sets a demo's status and, optionally, its error messages.
type StatusInput struct {
	Status           Status  `json:"status"`
	ErrorMessage     *string `json:"error_message,omitempty"`
	ErrorUserMessage *string `json:"error_user_message,omitempty"`
}

// IsActiveInput toggles a demo's is_active flag. A missing value means true.
type IsActiveInput struct {
	IsActive *bool `json:"is_active,omitempty"`
}

// AssignInput adds a user to a demo.
type AssignInput struct {
	MemberUserID string `json:"member_user_id"`
	Role         Role   `json:"role,omitempty"`
}

// Observer is notified of every successful mutation.
type Observer interface {
	ObserveMutation(operation string)
}

// Service implements the demo lifecycle on top of a Repository.
type Service struct {
	repo     Repository
	users    UserDirectory
	logos    LogoStore
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithUserDirectory makes member assignment check that the user exists.
func WithUserDirectory(d UserDirectory) Option {
	return func(s *Service) { s.users = d }
}

// WithLogoStore enables logo file uploads.
func WithLogoStore(l LogoStore) Option {
	return func(s *Service) { s.logos = l }
}

// WithObserver registers a mutation observer (metrics).
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger used for user-activity logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides demo ID generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService creates a Service backed by repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and stores a new demo owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Demo, error) {
	v := &ValidationError{}
	name := validateName(v, in.Name)
	logo := validateLogo(v, in.Logo)
	if err := v.orNil(); err != nil {
		return Demo{}, err
	}

	now := s.now()
	d := Demo{
		DemoID:    s.newID(),
		Name:      name,
		Logo:      logo,
		Status:    StatusCreated,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: userID,
	}
	if in.LogoFile != nil {
		url, err := s.saveLogo(ctx, d.DemoID, *in.LogoFile)
		if err != nil {
			return Demo{}, err
		}
		d.Logo = &url
	}
	if err := s.repo.CreateDemo(ctx, d); err != nil {
		if in.LogoFile != nil {
			s.deleteLogo(ctx, *d.Logo)
		}
		return Demo{}, fmt.Errorf("creating demo: %w", err)
	}
	s.record(ctx, "create", d.DemoID, userID)
	return d, nil
}

// Get returns a visible demo.
func (s *Service) Get(ctx context.Context, id string) (Demo, error) {
	d, err := s.repo.GetDemo(ctx, id)
	if err != nil {
		return Demo{}, err
	}
	if d.Deleted() {
		return Demo{}, fmt.Errorf("demo %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// List returns a page of visible demos.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	if err := q.Validate(); err != nil {
		return Page{}, err
	}
	page, err := s.repo.ListDemos(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("listing demos: %w", err)
	}
	return page, nil
}

// Update applies a partial update and marks the demo as updated.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (Demo, error) {
	v := &ValidationError{}
	var name string
	if in.Name != nil {
		name = validateName(v, *in.Name)
	}
	logo := validateLogo(v, in.Logo)
	if err := v.orNil(); err != nil {
		return Demo{}, err
	}

	var uploaded *string
	if in.LogoFile != nil {
		if _, err := s.Get(ctx, id); err != nil {
			return Demo{}, err
		}
		url, err := s.saveLogo(ctx, id, *in.LogoFile)
		if err != nil {
			return Demo{}, err
		}
		uploaded = &url
	}

	var previous *string
	d, err := s.mutate(ctx, "update", userID, id, func(d *Demo) {
		if in.Name != nil {
			d.Name = name
		}
		switch {
		case uploaded != nil:
			previous = d.Logo
			d.Logo = uploaded
		case in.Logo != nil:
			if d.Logo != nil && (logo == nil || *logo != *d.Logo) {
				previous = d.Logo
			}
			d.Logo = logo
		}
		d.Status = StatusUpdated
	})
	if err != nil {
		if uploaded != nil {
			s.deleteLogo(ctx, *uploaded)
		}
		return Demo{}, err
	}
	if previous != nil {
		s.deleteLogo(ctx, *previous)
	}
	return d, nil
}

func (s *Service) saveLogo(ctx context.Context, demoID string, up Upload) (string, error) {
	if s.logos == nil {
		return "", &UploadError{Msg: "Logo uploads are not enabled"}
	}
	url, err := s.logos.SaveLogo(ctx, demoID, up)
	if err != nil {
		var uerr *UploadError
		if errors.As(err, &uerr) {
			return "", err
		}
		return "", fmt.Errorf("saving logo for demo %s: %w", demoID, err)
	}
	return url, nil
}

// deleteLogo removes a stored logo file. Failures are logged only.
func (s *Service) deleteLogo(ctx context.Context, url string) {
	if s.logos == nil {
		return
	}
	if err := s.logos.DeleteLogo(ctx, url); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to delete logo", "logo", url, "error", err)
	}
}

// UpdateStatus sets the status and any supplied error messages.
func (s *Service) UpdateStatus(ctx context.Context, userID, id string, in StatusInput) (Demo, error) {
	if !in.Status.Valid() {
		return Demo{}, Invalid("enum", []string{"body", "status"},
			"Input should be one of "+quotedStatuses(), in.Status)
	}
	return s.mutate(ctx, "update_status", userID, id, func(d *Demo) {
		d.Status = in.Status
		if in.ErrorMessage != nil {
			d.ErrorMessage = trimmed(in.ErrorMessage)
		}
		if in.ErrorUserMessage != nil {
			d.ErrorUserMessage = trimmed(in.ErrorUserMessage)
		}
	})
}

// UpdateIsActive sets only the is_active flag.
func (s *Service) UpdateIsActive(ctx context.Context, userID, id string, in IsActiveInput) (Demo, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.mutate(ctx, "update_is_active", userID, id, func(d *Demo) {
		d.IsActive = active
	})
}

// Delete soft-deletes a demo.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	_, err := s.mutate(ctx, "delete", userID, id, func(d *Demo) {
		now := s.now()
		d.Status = StatusDeleted
		d.IsActive = false
		d.DeletedAt = &now
		d.DeletedBy = &userID
	})
	return err
}

// ListMembers returns a page of a visible demo's members.
func (s *Service) ListMembers(ctx context.Context, demoID string, q MemberQuery) (MemberPage, error) {
	if err := q.Validate(); err != nil {
		return MemberPage{}, err
	}
	if _, err := s.Get(ctx, demoID); err != nil {
		return MemberPage{}, err
	}
	page, err := s.repo.ListMembers(ctx, demoID, q)
	if err != nil {
		return MemberPage{}, fmt.Errorf("listing members of %s: %w", demoID, err)
	}
	return page, nil
}

// AssignMember adds in.MemberUserID to the demo with the requested role.
func (s *Service) AssignMember(ctx context.Context, userID, demoID string, in AssignInput) (Member, error) {
	v := &ValidationError{}
	memberID := strings.TrimSpace(in.MemberUserID)
	if _, err := uuid.Parse(memberID); err != nil {
		v.add("uuid_parsing", []string{"body", "member_user_id"}, "Input should be a valid UUID", in.MemberUserID)
	}
	role := Role(strings.TrimSpace(string(in.Role)))
	if role == "" {
		role = RoleMember
	}
	if !role.Valid() {
		v.add("enum", []string{"body", "role"}, "Input should be 'owner', 'admin', 'member' or 'viewer'", in.Role)
	}
	if err := v.orNil(); err != nil {
		return Member{}, err
	}

	if _, err := s.Get(ctx, demoID); err != nil {
		return Member{}, err
	}
	if s.users != nil {
		ok, err := s.users.UserExists(ctx, memberID)
		if err != nil {
			return Member{}, fmt.Errorf("looking up user %s: %w", memberID, err)
		}
		if !ok {
			return Member{}, fmt.Errorf("user %s: %w", memberID, ErrUserNotFound)
		}
	}

	m := Member{
		DemoID:    demoID,
		UserID:    memberID,
		Role:      role,
		CreatedAt: s.now(),
		CreatedBy: userID,
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		if errors.Is(err, ErrMemberExists) {
			return Member{}, err
		}
		return Member{}, fmt.Errorf("assigning member: %w", err)
	}
	s.record(ctx, "assign_member", demoID, userID)
	return m, nil
}

// mutate loads a visible demo, applies fn, stamps the audit fields and saves it.
func (s *Service) mutate(ctx context.Context, op, userID, id string, fn func(*Demo)) (Demo, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return Demo{}, err
	}
	fn(&d)
	d.UpdatedAt = s.now()
	d.UpdatedBy = &userID
	if err := s.repo.UpdateDemo(ctx, d); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Demo{}, err
		}
		return Demo{}, fmt.Errorf("%s demo %s: %w", strings.ReplaceAll(op, "_", " "), id, err)
	}
	s.record(ctx, op, id, userID)
	return d, nil
}

func (s *Service) record(ctx context.Context, op, demoID, userID string) {
	logging.FromContext(ctx, s.logger).Info("demo activity", "action", "demo_"+op, "demo_id", demoID, "user_id", userID)
	if s.observer != nil {
		s.observer.ObserveMutation(op)
	}
}

func validateName(v *ValidationError, raw string) string {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		v.add("string_too_short", []string{"body", "name"}, "String should have at least 1 character", raw)
	case n > maxNameLen:
		v.add("string_too_long", []string{"body", "name"}, fmt.Sprintf("String should have at most %d characters", maxNameLen), raw)
	}
	return name
}

func validateLogo(v *ValidationError, raw *string) *string {
	logo := trimmed(raw)
	if logo != nil && utf8.RuneCountInString(*logo) > maxLogoLen {
		v.add("string_too_long", []string{"body", "logo"}, fmt.Sprintf("String should have at most %d characters", maxLogoLen), *raw)
	}
	return logo
}

// trimmed strips whitespace and maps empty strings to nil.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func quotedStatuses() string {
	parts := make([]string, 0, len(Statuses()))
	for _, st := range Statuses() {
		parts = append(parts, "'"+string(st)+"'")
	}
	return strings.Join(parts, ", ")
}
