package user

import "golang.org/x/crypto/bcrypt"

// NewServiceMock returns a Service that hashes passwords with bcrypt's minimum cost, for fast tests.
func NewServiceMock(deps Deps) Service {
	passwordHashCost = bcrypt.MinCost
	return NewService(deps)
}
