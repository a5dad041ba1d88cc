package discovery_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fishfeeder/feeder-go/pkg/discovery"
	"github.com/fishfeeder/feeder-go/pkg/discovery/mocks"
)

func TestGroupAnnounce(t *testing.T) {
	info := discovery.ServiceInfo{Name: "Tank", Port: 2390}

	ok := mocks.NewMockAnnouncer(t)
	failing := mocks.NewMockAnnouncer(t)
	ok.EXPECT().Announce(mock.Anything, info).Return(nil)
	failing.EXPECT().Announce(mock.Anything, info).Return(errors.New("no multicast"))
	ok.EXPECT().Stop().Return()
	failing.EXPECT().Stop().Return()

	g := discovery.NewGroup(nil, ok, nil, failing)
	assert.Equal(t, 2, g.Len())
	assert.NoError(t, g.Announce(t.Context(), info))
	g.Stop()
}

func TestGroupAllFail(t *testing.T) {
	info := discovery.ServiceInfo{Port: 2390}
	a := mocks.NewMockAnnouncer(t)
	a.EXPECT().Announce(mock.Anything, info).Return(errors.New("down"))

	g := discovery.NewGroup(nil, a)
	assert.Error(t, g.Announce(t.Context(), info))
	assert.NoError(t, discovery.NewGroup(nil).Announce(t.Context(), info))
}
