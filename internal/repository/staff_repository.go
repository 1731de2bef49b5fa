package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/model"
	"github.com/iliyamo/restaurant-queue/internal/utils"
)

// StaffStore persists staff accounts.
type StaffStore interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Staff, error)
	GetByID(ctx context.Context, id uint64) (model.Staff, error)
}

// StaffRepo is the MySQL StaffStore over the 'staff' table.
type StaffRepo struct {
	DB *sql.DB // handle to the database containing the staff table
}

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create hashes password, inserts the account and returns its ID.
func (r *StaffRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff (email, password_hash, role) VALUES (?,?,?)",
		normalizeEmail(email), hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	return r.get(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM staff WHERE email=? LIMIT 1",
		normalizeEmail(email))
}

// GetByID fetches an account by id.
func (r *StaffRepo) GetByID(ctx context.Context, id uint64) (model.Staff, error) {
	return r.get(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM staff WHERE id=? LIMIT 1",
		id)
}

func (r *StaffRepo) get(ctx context.Context, q string, arg any) (model.Staff, error) {
	var s model.Staff
	err := r.DB.QueryRowContext(ctx, q, arg).
		Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Staff{}, ErrStaffNotFound
	}
	return s, err
}

// MemoryStaffRepo keeps accounts in memory for the development mode.
type MemoryStaffRepo struct {
	mu     sync.RWMutex           // guards byID and nextID
	byID   map[uint64]model.Staff // accounts keyed by id; email lookups scan it
	nextID uint64                 // id handed to the next Create
}

func NewMemoryStaffRepo() *MemoryStaffRepo {
	return &MemoryStaffRepo{byID: make(map[uint64]model.Staff), nextID: 1}
}

func (r *MemoryStaffRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Email == email {
			return 0, ErrEmailExists
		}
	}
	now := time.Now().UTC()
	s := model.Staff{
		ID: r.nextID, Email: email, PasswordHash: hash, Role: role,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	r.byID[s.ID] = s
	r.nextID++
	return s.ID, nil
}

func (r *MemoryStaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	email = normalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.Email == email {
			return s, nil
		}
	}
	return model.Staff{}, ErrStaffNotFound
}

func (r *MemoryStaffRepo) GetByID(ctx context.Context, id uint64) (model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return model.Staff{}, ErrStaffNotFound
	}
	return s, nil
}
