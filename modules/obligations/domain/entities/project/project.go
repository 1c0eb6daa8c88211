package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("project not found")

type Project struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

func New(name string) Project {
	return Project{ID: uuid.New(), Name: strings.TrimSpace(name)}
}

type Repository interface {
	GetByName(ctx context.Context, name string) (Project, error)
	// GetOrCreate returns the project with the given name, creating it when absent.
	// created is false when another writer inserted the row first.
	GetOrCreate(ctx context.Context, name string) (p Project, created bool, err error)
}
