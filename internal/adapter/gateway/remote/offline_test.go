package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

func TestOffline_EveryCallUnavailable(t *testing.T) {
	ctx := context.Background()
	var gw Offline

	assert.ErrorIs(t, gw.Ping(ctx), output.ErrRemoteUnavailable)
	_, err := gw.LinkAccount(ctx, "tok")
	assert.ErrorIs(t, err, output.ErrRemoteUnavailable)

	_, err = gw.Journeys().GetAll(ctx)
	assert.ErrorIs(t, err, output.ErrRemoteUnavailable)
	_, err = gw.Journeys().Create(ctx, journey.Journey{ID: "j1"})
	assert.ErrorIs(t, err, output.ErrRemoteUnavailable)
	_, err = gw.Journals().Sync(ctx, nil)
	assert.ErrorIs(t, err, output.ErrRemoteUnavailable)
	assert.ErrorIs(t, gw.Journals().Delete(ctx, "n1"), output.ErrRemoteUnavailable)
}
