package memory

import (
	"testing"

	"pideci/backend/internal/store"
	"pideci/backend/internal/store/storetest"
)

func TestRepositoryConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		return New()
	})
}
