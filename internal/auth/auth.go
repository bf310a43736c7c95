package auth

import "errors"

// ErrVerificationRequired rejects chat access for accounts that exist but
// have not completed verification with the identity provider.
var ErrVerificationRequired = errors.New("account verification required")

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

type Repository interface {
	LoadAll() ([]User, error)
	Upsert(user User) error
	Remove(userID string) error
}

// Service answers the two questions the orchestrator asks before touching
// session state: does this user exist, and are they verified. Actual
// credential checking lives with the external identity provider; this is
// the local guard over its result.
type Service struct {
	repo  Repository
	users map[string]User
}

func NewWithRepo(repo Repository, initialVerified []string) (*Service, error) {
	s := &Service{repo: repo, users: make(map[string]User)}
	// preload from repo
	if repo != nil {
		users, err := repo.LoadAll()
		if err == nil {
			for _, u := range users {
				s.users[u.ID] = u
			}
		}
	}
	// merge pre-verified IDs (from env) without usernames
	for _, id := range initialVerified {
		if _, ok := s.users[id]; !ok {
			s.users[id] = User{ID: id, Verified: true}
		}
	}
	return s, nil
}

func (s *Service) IsVerified(userID string) bool {
	u, ok := s.users[userID]
	return ok && u.Verified
}

func (s *Service) Upsert(user User) error {
	s.users[user.ID] = user
	if s.repo != nil {
		return s.repo.Upsert(user)
	}
	return nil
}

func (s *Service) Remove(userID string) error {
	delete(s.users, userID)
	if s.repo != nil {
		return s.repo.Remove(userID)
	}
	return nil
}

func (s *Service) List() []User {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}
