package memory

import (
	"context"
	"sort"

	"github.com/seu-repo/parkflow/internal/domain"
)

type VehicleRepository struct {
	s *Store
}

func (r *VehicleRepository) Save(ctx context.Context, vehicle *domain.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = r.s.now()
	}
	r.s.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.vehicles[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) FindByRoles(ctx context.Context, roles ...domain.UserRole) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.User
	for _, u := range r.s.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
