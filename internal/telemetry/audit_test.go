package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
)

type publisherStub struct {
	mock.Mock
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, event any) error {
	args := p.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (p *publisherStub) Close() error {
	return nil
}

func TestEmitCarriesRequestMeta(t *testing.T) {
	publisher := new(publisherStub)
	publisher.On("Publish", mock.Anything, "audit.devserver", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		return ok &&
			envelope.SchemaVersion == 1 &&
			envelope.Service == "devserver" &&
			envelope.Environment == "test" &&
			envelope.RequestID == "req-1" &&
			envelope.DeviceID == "device-9" &&
			envelope.IP == "203.0.113.7" &&
			envelope.UserID == "u1" &&
			envelope.Payload.Level == "info" &&
			envelope.Payload.Text == "user login"
	})).Return(nil).Once()

	emitter := NewAuditEmitter(publisher, "audit.devserver", "devserver", "test")
	emitter.Emit(context.Background(), "info", "user login", observability.RequestMeta{
		RequestID: "req-1",
		DeviceID:  "device-9",
		IP:        "203.0.113.7",
	}, "u1")

	publisher.AssertExpectations(t)
}

func TestEmitWithoutPublisherIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "info", "x", observability.RequestMeta{}, "")
	})
}
