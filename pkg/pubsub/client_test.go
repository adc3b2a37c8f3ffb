package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/ordercore-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/ordercore-dev/topics/domain", resourceName("ordercore-dev", "topics", " domain "))
	assert.Equal(t, "projects/other/topics/domain", resourceName("ordercore-dev", "topics", "projects/other/topics/domain"))
	assert.Equal(t, "projects/ordercore-dev/subscriptions/worker", resourceName("ordercore-dev", "subscriptions", "worker"))
	assert.Empty(t, resourceName("ordercore-dev", "topics", "projects/other/subscriptions/worker"))
	assert.Empty(t, resourceName("ordercore-dev", "topics", ""))
	assert.Empty(t, resourceName("", "subscriptions", "worker"))
}

func TestDescribeLookup(t *testing.T) {
	assert.NoError(t, describeLookup("topic", "t", nil))

	err := describeLookup("topic", "projects/p/topics/t", status.Error(codes.NotFound, "gone"))
	assert.EqualError(t, err, `topic "projects/p/topics/t" does not exist`)

	cause := errors.New("dial tcp: refused")
	assert.ErrorIs(t, describeLookup("subscription", "s", cause), cause)
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, RolePublisher, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("domain"))
	assert.Nil(t, c.DomainSubscription())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
}
