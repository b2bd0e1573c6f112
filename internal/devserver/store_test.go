package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
)

func TestMessageRowRestoresStructuredPayload(t *testing.T) {
	row := messageRow{
		ChatMessage: models.ChatMessage{ID: "m1", Message: "Bulk Plan"},
		ExtraRaw:    []byte(`{"context":"mealplan","planId":"p7","planLabel":"Bulk Plan"}`),
	}

	msg := row.message()
	require.NotNil(t, msg.ExtraInformation)
	assert.Equal(t, models.ContextMealPlan, msg.ExtraInformation.Context)
	assert.Equal(t, "p7", msg.ExtraInformation.PlanID)
	assert.Equal(t, "Bulk Plan", msg.ExtraInformation.PlanLabel)
}

func TestMessageRowWithoutPayloadStaysPlain(t *testing.T) {
	row := messageRow{ChatMessage: models.ChatMessage{ID: "m2", Message: "hey"}}
	assert.Nil(t, row.message().ExtraInformation)
}

func TestMessageRowIgnoresUnreadablePayload(t *testing.T) {
	row := messageRow{
		ChatMessage: models.ChatMessage{ID: "m3", Message: "hey"},
		ExtraRaw:    []byte("{broken"),
	}
	assert.Nil(t, row.message().ExtraInformation)
}
