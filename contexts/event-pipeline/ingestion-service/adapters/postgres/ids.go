package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemClock is the production Clock implementation.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// UUIDGenerator issues random correlation ids for published records.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
