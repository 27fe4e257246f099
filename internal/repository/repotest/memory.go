// Package repotest provides in-memory repositories that honour the same
// uniqueness, conditional-update and transaction semantics as the MySQL ones.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository"
)

type table map[uuid.UUID]model.Principal

// PrincipalRepository is an in-memory repository.PrincipalRepository.
type PrincipalRepository struct {
	mu     *sync.Mutex
	tables map[model.Kind]table
	inTx   bool

	// FailCreate, when set, is returned by the next Create instead of inserting.
	FailCreate error
	// FailSave, when set, is returned by the next Save instead of updating.
	FailSave error
}

var _ repository.PrincipalRepository = (*PrincipalRepository)(nil)

// NewPrincipalRepository returns an empty repository.
func NewPrincipalRepository() *PrincipalRepository {
	return &PrincipalRepository{
		mu: &sync.Mutex{},
		tables: map[model.Kind]table{
			model.KindAdmin:  {},
			model.KindMember: {},
			model.KindSchool: {},
		},
	}
}

func (r *PrincipalRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func clone(p model.Principal) model.Principal {
	switch v := p.(type) {
	case *model.Admin:
		c := *v
		return &c
	case *model.Member:
		c := *v
		return &c
	case *model.School:
		c := *v
		return &c
	}
	return nil
}

func setID(p model.Principal) {
	switch v := p.(type) {
	case *model.Admin:
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
	case *model.Member:
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
	case *model.School:
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		if v.Tier == "" {
			v.Tier = model.TierBasic
		}
		if v.Status == "" {
			v.Status = model.SchoolActive
		}
	}
}

// Create inserts principal, enforcing per-kind email uniqueness and the save hook.
func (r *PrincipalRepository) Create(ctx context.Context, principal model.Principal) error {
	defer r.lock()()
	if err := r.FailCreate; err != nil {
		r.FailCreate = nil
		return err
	}
	t := r.tables[principal.PrincipalKind()]
	for _, existing := range t {
		if existing.Creds().Email == principal.Creds().Email {
			return apperrors.ErrDuplicateEmail
		}
	}
	setID(principal)
	if err := runSaveHook(principal); err != nil {
		return err
	}
	t[principal.PrincipalID()] = clone(principal)
	return nil
}

func runSaveHook(p model.Principal) error {
	switch v := p.(type) {
	case *model.Admin:
		return v.BeforeSave(nil)
	case *model.Member:
		return v.BeforeSave(nil)
	case *model.School:
		return v.BeforeSave(nil)
	}
	return nil
}

// Save overwrites an existing principal.
func (r *PrincipalRepository) Save(ctx context.Context, principal model.Principal) error {
	defer r.lock()()
	if err := r.FailSave; err != nil {
		r.FailSave = nil
		return err
	}
	t := r.tables[principal.PrincipalKind()]
	if _, ok := t[principal.PrincipalID()]; !ok {
		return apperrors.ErrNotFound
	}
	for id, existing := range t {
		if id != principal.PrincipalID() && existing.Creds().Email == principal.Creds().Email {
			return apperrors.ErrDuplicateEmail
		}
	}
	if err := runSaveHook(principal); err != nil {
		return err
	}
	t[principal.PrincipalID()] = clone(principal)
	return nil
}

// FindByID returns a copy of the stored principal.
func (r *PrincipalRepository) FindByID(ctx context.Context, kind model.Kind, id uuid.UUID) (model.Principal, error) {
	defer r.lock()()
	p, ok := r.tables[kind][id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(p), nil
}

// FindByEmail returns a copy of the principal with email.
func (r *PrincipalRepository) FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error) {
	defer r.lock()()
	for _, p := range r.tables[kind] {
		if p.Creds().Email == email {
			return clone(p), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// SetOTP overwrites the pending code of an unverified principal.
func (r *PrincipalRepository) SetOTP(ctx context.Context, kind model.Kind, id uuid.UUID, code string, expiresAt time.Time) error {
	defer r.lock()()
	p, ok := r.tables[kind][id]
	if !ok || p.Creds().Verified {
		return apperrors.ErrNotFound
	}
	p.Creds().SetOTP(code, expiresAt)
	return nil
}

// ConsumeOTP mirrors the conditional UPDATE of the MySQL repository.
func (r *PrincipalRepository) ConsumeOTP(ctx context.Context, kind model.Kind, id uuid.UUID, code string, now time.Time) (bool, error) {
	defer r.lock()()
	p, ok := r.tables[kind][id]
	if !ok {
		return false, nil
	}
	creds := p.Creds()
	if creds.OTPCode == nil || *creds.OTPCode != code || creds.OTPExpiresAt == nil || !creds.OTPExpiresAt.After(now) {
		return false, nil
	}
	creds.Verified = true
	creds.ClearOTP()
	return true, nil
}

// UpdatePassword replaces the stored hash.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, kind model.Kind, id uuid.UUID, passwordHash string) error {
	defer r.lock()()
	p, ok := r.tables[kind][id]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Creds().PasswordHash = passwordHash
	return nil
}

// WithTransaction runs fn against a working copy and commits it only when fn succeeds.
func (r *PrincipalRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.PrincipalRepository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &PrincipalRepository{mu: r.mu, tables: r.snapshot(), inTx: true, FailCreate: r.FailCreate, FailSave: r.FailSave}
	err := fn(ctx, tx)
	r.FailCreate, r.FailSave = tx.FailCreate, tx.FailSave
	if err != nil {
		return err
	}
	r.tables = tx.tables
	return nil
}

func (r *PrincipalRepository) snapshot() map[model.Kind]table {
	out := make(map[model.Kind]table, len(r.tables))
	for kind, t := range r.tables {
		c := make(table, len(t))
		for id, p := range t {
			c[id] = clone(p)
		}
		out[kind] = c
	}
	return out
}

// Get returns a copy of a stored principal for assertions, or nil.
func (r *PrincipalRepository) Get(kind model.Kind, email string) model.Principal {
	p, err := r.FindByEmail(context.Background(), kind, email)
	if err != nil {
		return nil
	}
	return p
}

// Count returns the number of stored principals of kind.
func (r *PrincipalRepository) Count(kind model.Kind) int {
	defer r.lock()()
	return len(r.tables[kind])
}

// Put stores p as is, bypassing uniqueness checks. Used to seed fixtures.
func (r *PrincipalRepository) Put(p model.Principal) {
	defer r.lock()()
	setID(p)
	_ = runSaveHook(p)
	r.tables[p.PrincipalKind()][p.PrincipalID()] = clone(p)
}

// RoleRepository is an in-memory repository.RoleRepository.
type RoleRepository struct {
	mu    sync.Mutex
	roles map[model.RoleName]model.Role
}

var _ repository.RoleRepository = (*RoleRepository)(nil)

// NewRoleRepository returns an empty role repository.
func NewRoleRepository() *RoleRepository {
	return &RoleRepository{roles: map[model.RoleName]model.Role{}}
}

// FindByName returns the role named name.
func (r *RoleRepository) FindByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &role, nil
}

// FindOrCreate returns the existing role or stores role.
func (r *RoleRepository) FindOrCreate(ctx context.Context, role *model.Role) (*model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.roles[role.Name]; ok {
		return &existing, nil
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	r.roles[role.Name] = *role
	return role, nil
}

// List returns all roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
