package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContainerAccessors(t *testing.T) {
	c := Container{
		"Names":     "web, web-alias",
		"Image":     "nginx:1.27",
		"State":     "running",
		"CreatedAt": "2024-05-01 10:00:00 +0000 UTC",
		"Ports":     "0.0.0.0:80->80/tcp",
		"Size":      float64(12),
	}

	assert.Equal(t, "web", c.Name())
	assert.Equal(t, "nginx:1.27", c.Image())
	assert.Equal(t, "running", c.State())
	assert.Equal(t, "2024-05-01 10:00:00 +0000 UTC", c.CreatedAt())
	assert.Equal(t, "0.0.0.0:80->80/tcp", c.Ports())
}

func TestContainerAccessors_MissingOrWrongType(t *testing.T) {
	c := Container{"Names": 42}

	assert.Empty(t, c.Name())
	assert.Empty(t, c.Image())
}

func TestHostResultConstructors(t *testing.T) {
	snap := &HostSnapshot{Label: "web1", FetchedAt: time.Now()}

	ok := Connected(snap)
	assert.Equal(t, HostConnected, ok.Status)
	assert.Equal(t, "web1", ok.Label)
	assert.Same(t, snap, ok.Snapshot)

	nf := NotFound("ghost1")
	assert.Equal(t, HostNotFound, nf.Status)
	assert.Nil(t, nf.Snapshot)

	cf := ConnectionFailed("web2", "dial timeout", "TIMEOUT")
	assert.Equal(t, HostConnectionFailed, cf.Status)
	assert.Equal(t, "dial timeout", cf.Reason)
	assert.Equal(t, "TIMEOUT", cf.Code)
}
