package core

import (
	"context"
)

// IService is the lifecycle shared by every model backend.
type IService interface {
	Init(ctx context.Context) error
	Cleanup() error
	Reset() error
}
