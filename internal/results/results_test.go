package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sporthub/internal/registry"
	"sporthub/internal/upstream"
	"sporthub/pkg/log"
)

func TestCompetitionsPropagatesRequestFailure(t *testing.T) {
	logger := log.New("test")
	reg := registry.New()
	session := upstream.NewSession("wss://upstream.invalid/ws", "p1", "en", reg, logger)
	svc := New(session)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Competitions(ctx, "", "")

	assert.Error(t, err)
}

func TestGamesBySportPropagatesRequestFailure(t *testing.T) {
	logger := log.New("test")
	reg := registry.New()
	session := upstream.NewSession("wss://upstream.invalid/ws", "p1", "en", reg, logger)
	svc := New(session)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.GamesBySport(ctx, "1", "", "")

	assert.Error(t, err)
}
