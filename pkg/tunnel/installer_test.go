package tunnel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/pkg/errkind"
	"github.com/fossable/outpost/pkg/tunnel"
)

type fakeToolchain struct {
	lookupErr error
	upErr     error
	downErr   error
	upPath    string
	downPath  string
}

func (f *fakeToolchain) Lookup() error { return f.lookupErr }
func (f *fakeToolchain) Up(ctx context.Context, path string) error {
	f.upPath = path
	return f.upErr
}
func (f *fakeToolchain) Down(ctx context.Context, path string) error {
	f.downPath = path
	return f.downErr
}

func TestInstallFailsFastWhenToolchainMissing(t *testing.T) {
	tc := &fakeToolchain{lookupErr: errkind.New(errkind.ErrToolchainMissing, "no wg-quick", nil)}
	_, err := tunnel.Install(context.Background(), tc, baseParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, errkind.ErrToolchainMissing)
}

func TestInstallWritesConfigAndBringsUp(t *testing.T) {
	tc := &fakeToolchain{}
	handle, err := tunnel.Install(context.Background(), tc, baseParams())
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.NotEmpty(t, tc.upPath)

	err = handle.Drop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tc.upPath, tc.downPath)
}

func TestInstallPropagatesActivationFailure(t *testing.T) {
	tc := &fakeToolchain{upErr: errkind.New(errkind.ErrTunnelActivationFailed, "boom", nil)}
	_, err := tunnel.Install(context.Background(), tc, baseParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, errkind.ErrTunnelActivationFailed)
}
